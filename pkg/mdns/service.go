package mdns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/dnswire"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
)

// Config configures the discovery service.
type Config struct {
	// QueryWindow is how long QueryForService waits for responses.
	QueryWindow time.Duration

	// Fallback selects the loopback-default policy for unmatched
	// service-locator records.
	Fallback FallbackPolicy

	// Logger for debug output (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default discovery configuration.
func DefaultConfig() Config {
	return Config{
		QueryWindow: DefaultQueryWindow,
		Fallback:    FallbackAllUnmatched,
	}
}

type advKey struct {
	instance    string
	serviceType string
}

// Service is the discovery service. It owns the multicast socket and the
// advertised/discovered tables.
type Service struct {
	config Config
	logger *slog.Logger
	plog   log.Logger

	conn  *net.UDPConn
	group *net.UDPAddr

	mu         sync.Mutex
	advertised map[advKey]AdvertisedService
	discovered []DiscoveredService
	queryType  string // service type of the query in flight, if any

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates the discovery service: it binds the well-known port with
// address/port reuse and joins the multicast group on every non-loopback
// IPv4 interface. If interface enumeration fails, it falls back to a
// wildcard join rather than failing construction.
func New(config Config) (*Service, error) {
	if config.QueryWindow <= 0 {
		config.QueryWindow = DefaultQueryWindow
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", Port))
	if err != nil {
		return nil, fmt.Errorf("mdns: bind port %d: %w", Port, err)
	}
	conn := pc.(*net.UDPConn)

	group := &net.UDPAddr{IP: net.ParseIP(MulticastAddr), Port: Port}
	joinMulticastGroup(conn, group, logger)

	return &Service{
		config:     config,
		logger:     logger,
		plog:       plog,
		conn:       conn,
		group:      group,
		advertised: make(map[advKey]AdvertisedService),
	}, nil
}

// joinMulticastGroup joins the mDNS group on each usable interface. A
// single failed join is logged and skipped; an announcement may arrive on
// any interface, so joining only the default route is not enough.
func joinMulticastGroup(conn *net.UDPConn, group *net.UDPAddr, logger *slog.Logger) {
	pconn := ipv4.NewPacketConn(conn)

	ifaces, err := net.Interfaces()
	if err != nil {
		logger.Warn("could not enumerate interfaces, joining on wildcard", "err", err)
		if err := pconn.JoinGroup(nil, group); err != nil {
			logger.Warn("wildcard multicast join failed", "err", err)
		}
		return
	}

	joined := 0
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagMulticast == 0 ||
			iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if err := pconn.JoinGroup(iface, group); err != nil {
			logger.Debug("multicast join failed", "iface", iface.Name, "err", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		// Degraded fallback: let the kernel pick an interface.
		if err := pconn.JoinGroup(nil, group); err != nil {
			logger.Warn("wildcard multicast join failed", "err", err)
		}
	}
}

// Advertise upserts a service into the advertised table, keyed by
// (instance name, service type). Idempotent per key.
func (s *Service) Advertise(instanceName, serviceType string, port uint16, address net.IP) {
	s.mu.Lock()
	s.advertised[advKey{instanceName, serviceType}] = AdvertisedService{
		ServiceName: instanceName,
		ServiceType: serviceType,
		Port:        port,
		Address:     address,
	}
	s.mu.Unlock()

	s.logger.Info("advertising service",
		"instance", instanceName, "type", serviceType, "port", port, "address", address)
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerDiscovery,
		Category:  log.CategoryState,
		Instance:  instanceName,
		Detail:    "advertise " + serviceType,
	})
}

// StartResponder starts the background loop that answers inbound queries
// for advertised services. It does not discover peers; use
// StartQueryListener when the caller also needs discovery.
func (s *Service) StartResponder() error {
	return s.startLoop(false)
}

// StartQueryListener starts the background loop that answers inbound
// queries and additionally feeds inbound responses to the correlation
// routine, so QueryForService can resolve peers.
func (s *Service) StartQueryListener() error {
	return s.startLoop(true)
}

func (s *Service) startLoop(handleResponses bool) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.receiveLoop(ctx, handleResponses)
	return nil
}

func (s *Service) receiveLoop(ctx context.Context, handleResponses bool) {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		if ctx.Err() != nil {
			s.logger.Debug("discovery loop shutting down")
			return
		}

		// A short deadline doubles as the cancellation poll interval.
		_ = s.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if isOversizedDatagram(err) {
				// Noisy devices on the group send datagrams larger than
				// our buffer; skip them.
				s.logger.Warn("skipping oversized datagram", "err", err)
				continue
			}
			s.logger.Error("discovery receive error", "err", err)
			time.Sleep(receiveErrorBackoff)
			continue
		}

		packet, err := dnswire.Decode(buf[:n])
		if err != nil {
			// Unrelated third-party traffic on the shared group is
			// expected; discard the single packet.
			s.logger.Debug("undecodable discovery packet", "from", from, "err", err)
			continue
		}

		s.plog.Log(log.Event{
			Timestamp:  time.Now(),
			Direction:  log.DirectionIn,
			Layer:      log.LayerDiscovery,
			Category:   log.CategoryPacket,
			RemoteAddr: from.String(),
			Size:       n,
		})

		if packet.Response {
			if handleResponses {
				s.collectResponses(packet)
			}
			continue
		}
		s.respond(packet)
	}
}

// QueryForService clears the discovered table, multicasts one query for the
// service type, waits for the query window to let asynchronous responses
// accumulate, and returns the filtered snapshot. Discovery responses are
// best-effort and unordered; the fixed window bounds worst-case latency.
func (s *Service) QueryForService(ctx context.Context, serviceType string, instanceFilter string) ([]DiscoveredService, error) {
	if !s.running.Load() {
		// Responses are only collected by the listener loop.
		return nil, ErrStopped
	}

	s.mu.Lock()
	s.discovered = nil
	s.queryType = serviceType
	s.mu.Unlock()

	query := dnswire.NewQuery(serviceType, dnswire.TypeANY)
	data := query.Encode()
	if _, err := s.conn.WriteToUDP(data, s.group); err != nil {
		return nil, fmt.Errorf("mdns: send query: %w", err)
	}
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerDiscovery,
		Category:   log.CategoryPacket,
		RemoteAddr: s.group.String(),
		Size:       len(data),
		Detail:     "query " + serviceType,
	})

	select {
	case <-time.After(s.config.QueryWindow):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	snapshot := make([]DiscoveredService, len(s.discovered))
	copy(snapshot, s.discovered)
	s.queryType = ""
	s.mu.Unlock()

	if instanceFilter == "" {
		return snapshot, nil
	}
	filtered := snapshot[:0]
	for _, svc := range snapshot {
		if strings.Contains(svc.ServiceName, instanceFilter) {
			filtered = append(filtered, svc)
		}
	}
	return filtered, nil
}

// Discovered returns the services collected since the last query started.
func (s *Service) Discovered() []DiscoveredService {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DiscoveredService, len(s.discovered))
	copy(out, s.discovered)
	return out
}

// collectResponses correlates one response packet against the query in
// flight and appends any resolved services to the discovered table.
func (s *Service) collectResponses(packet *dnswire.Packet) {
	s.mu.Lock()
	queryType := s.queryType
	s.mu.Unlock()
	if queryType == "" {
		return
	}

	entries := correlate(packet, queryType, s.config.Fallback)
	if len(entries) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if s.containsDiscoveredLocked(e) {
			continue
		}
		s.discovered = append(s.discovered, e)
		s.logger.Info("discovered service",
			"instance", e.ServiceName, "port", e.Port, "address", e.Address)
	}
}

func (s *Service) containsDiscoveredLocked(e DiscoveredService) bool {
	for _, d := range s.discovered {
		if d.ServiceName == e.ServiceName && d.Port == e.Port && d.Address.Equal(e.Address) {
			return true
		}
	}
	return false
}

// Stop cancels the background loop and releases the socket. Safe to call
// more than once.
func (s *Service) Stop() {
	if s.running.CompareAndSwap(true, false) && s.cancel != nil {
		s.cancel()
	}
	// Closing the socket also kicks the loop out of a blocked read in case
	// the cancellation poll is missed.
	_ = s.conn.Close()
	s.wg.Wait()
	s.logger.Info("discovery service stopped")
}
