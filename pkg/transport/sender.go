package transport

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/osc"
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	// Host and Port of the peer's control endpoint.
	Host string
	Port uint16

	// Logger for debug output (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger
}

// Sender delivers control messages to one peer endpoint.
type Sender struct {
	target *net.UDPAddr
	logger *slog.Logger
	plog   log.Logger
}

// NewSender resolves the peer endpoint. No socket is held between sends.
func NewSender(config SenderConfig) (*Sender, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}

	target, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", config.Host, config.Port))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve peer %s:%d: %w", config.Host, config.Port, err)
	}
	return &Sender{target: target, logger: logger, plog: plog}, nil
}

// Target returns the resolved peer endpoint.
func (s *Sender) Target() *net.UDPAddr {
	return s.target
}

// Send encodes and delivers one message through a fresh ephemeral socket.
func (s *Sender) Send(msg osc.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", msg.Address, err)
	}
	if err := s.write(data); err != nil {
		return err
	}
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerControl,
		Category:   log.CategoryPacket,
		RemoteAddr: s.target.String(),
		Address:    msg.Address,
		Size:       len(data),
	})
	return nil
}

// SendBundle encodes and delivers one bundle through a fresh ephemeral
// socket.
func (s *Sender) SendBundle(b osc.Bundle) error {
	data, err := b.Encode()
	if err != nil {
		return fmt.Errorf("transport: encode bundle: %w", err)
	}
	if err := s.write(data); err != nil {
		return err
	}
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerControl,
		Category:   log.CategoryPacket,
		RemoteAddr: s.target.String(),
		Size:       len(data),
		Detail:     "bundle",
	})
	return nil
}

func (s *Sender) write(data []byte) error {
	conn, err := net.DialUDP("udp4", nil, s.target)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", s.target, err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("transport: send to %s: %w", s.target, err)
	}
	return nil
}
