package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/osc"
)

const (
	// DefaultSendPort is where a local control peer listens by default.
	DefaultSendPort = 9000
	// DefaultReceivePort is where a local control peer emits to by default.
	DefaultReceivePort = 9001

	maxDatagramSize = 4096
	pollInterval    = 100 * time.Millisecond
)

// ErrAlreadyRunning is returned when Start is called on a running Receiver.
var ErrAlreadyRunning = errors.New("transport: receiver already running")

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Port to receive control messages on. Zero picks an ephemeral port.
	Port uint16

	// Logger for debug output (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger
}

// Receiver listens for inbound control messages.
type Receiver struct {
	logger *slog.Logger
	plog   log.Logger

	conn *net.UDPConn

	mu     sync.Mutex
	queue  []osc.Message
	signal chan struct{}
	out    chan osc.Message

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewReceiver binds the receive socket. The wildcard bind is tried first;
// hosts that refuse it (firewall policy, sandboxing) fall back to loopback,
// which still covers the usual same-host peer.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: int(config.Port)})
	if err != nil {
		logger.Warn("wildcard bind refused, falling back to loopback", "err", err)
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(config.Port)})
		if err != nil {
			return nil, fmt.Errorf("transport: bind receive port %d: %w", config.Port, err)
		}
	}

	return &Receiver{
		logger: logger,
		plog:   plog,
		conn:   conn,
		signal: make(chan struct{}, 1),
		out:    make(chan osc.Message),
	}, nil
}

// Port returns the bound receive port.
func (r *Receiver) Port() uint16 {
	return uint16(r.conn.LocalAddr().(*net.UDPAddr).Port)
}

// Messages returns the inbound message stream. The channel closes when the
// receiver stops.
func (r *Receiver) Messages() <-chan osc.Message {
	return r.out
}

// Start launches the receive and dispatch loops.
func (r *Receiver) Start() error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(2)
	go r.receiveLoop(ctx)
	go r.dispatchLoop(ctx)
	return nil
}

func (r *Receiver) receiveLoop(ctx context.Context) {
	defer r.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		if ctx.Err() != nil {
			return
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("control receive error", "err", err)
			continue
		}

		msgs, err := osc.Decode(buf[:n])
		if err != nil {
			// Malformed or foreign traffic; drop the datagram.
			r.logger.Debug("undecodable control datagram", "from", from, "err", err)
			continue
		}

		for _, msg := range msgs {
			r.plog.Log(log.Event{
				Timestamp:  time.Now(),
				Direction:  log.DirectionIn,
				Layer:      log.LayerControl,
				Category:   log.CategoryPacket,
				RemoteAddr: from.String(),
				Address:    msg.Address,
				Size:       n,
			})
			r.enqueue(msg)
		}
	}
}

func (r *Receiver) enqueue(msg osc.Message) {
	r.mu.Lock()
	r.queue = append(r.queue, msg)
	r.mu.Unlock()
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// dispatchLoop drains the queue into the output channel. Queue growth is
// unbounded so a slow consumer backs up memory, not the socket.
func (r *Receiver) dispatchLoop(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.out)

	for {
		r.mu.Lock()
		var msg osc.Message
		have := len(r.queue) > 0
		if have {
			msg = r.queue[0]
			r.queue = r.queue[1:]
		}
		r.mu.Unlock()

		if !have {
			select {
			case <-r.signal:
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case r.out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the loops and releases the socket. Safe to call more than
// once.
func (r *Receiver) Stop() {
	if r.running.CompareAndSwap(true, false) && r.cancel != nil {
		r.cancel()
	}
	_ = r.conn.Close()
	r.wg.Wait()
	r.logger.Info("control receiver stopped")
}
