package oscquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/mdns"
)

const shutdownTimeout = 3 * time.Second

// Config configures the directory server.
type Config struct {
	// BindAddress is the HTTP listen address. Defaults to 127.0.0.1.
	BindAddress string

	// Port is the HTTP listen port. Zero picks an ephemeral port,
	// readable from Port() after Start.
	Port uint16

	// OSCIP and OSCPort locate the UDP control endpoint reported in
	// HOST_INFO.
	OSCIP   string
	OSCPort uint16

	// NamePrefix prefixes the generated instance name. Defaults to MAOW.
	NamePrefix string

	// Logger for debug output (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default directory configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress: "127.0.0.1",
		OSCIP:       "127.0.0.1",
		NamePrefix:  "MAOW",
	}
}

// Advertiser registers service records with the discovery layer. Satisfied
// by *mdns.Service.
type Advertiser interface {
	Advertise(instanceName, serviceType string, port uint16, address net.IP)
}

// Server is the capability directory server.
type Server struct {
	config Config
	logger *slog.Logger
	plog   log.Logger

	mu      sync.Mutex
	name    string
	methods map[string]Method
	tree    *Node

	httpServer *http.Server
	listener   net.Listener
	port       atomic.Uint32

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a directory server. Nothing listens until Start.
func NewServer(config Config) *Server {
	if config.BindAddress == "" {
		config.BindAddress = "127.0.0.1"
	}
	if config.OSCIP == "" {
		config.OSCIP = "127.0.0.1"
	}
	if config.NamePrefix == "" {
		config.NamePrefix = "MAOW"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	return &Server{
		config:  config,
		logger:  logger,
		plog:    plog,
		methods: make(map[string]Method),
	}
}

// Start binds the listener and serves in the background. Calling Start on
// a running server is a no-op.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("oscquery: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.port.Store(uint32(listener.Addr().(*net.TCPAddr).Port))

	mux := http.NewServeMux()
	mux.HandleFunc("/HOST_INFO", s.handleHostInfo)
	mux.HandleFunc("/", s.handleTree)
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("directory server failed", "err", err)
		}
	}()

	s.logger.Info("directory server listening", "address", listener.Addr())
	return nil
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
	s.wg.Wait()
	s.logger.Info("directory server stopped")
}

// Port returns the bound HTTP port, zero before Start.
func (s *Server) Port() uint16 {
	return uint16(s.port.Load())
}

// Name returns the instance name, empty until SetName or AdvertiseAs.
func (s *Server) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName sets the instance name reported in HOST_INFO.
func (s *Server) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// AddMethod registers a method and rebuilds the tree.
func (s *Server) AddMethod(m Method) error {
	if len(m.Address) == 0 || m.Address[0] != '/' {
		return ErrBadAddress
	}
	if m.Value != nil {
		v, err := coerceValue(m.Type, m.Value)
		if err != nil {
			return err
		}
		m.Value = v
	}

	s.mu.Lock()
	s.methods[m.Address] = m
	s.rebuildLocked()
	s.mu.Unlock()

	s.logger.Debug("method registered", "address", m.Address, "access", m.Access)
	return nil
}

// RemoveMethod drops a method and rebuilds the tree. Unknown addresses are
// a no-op.
func (s *Server) RemoveMethod(address string) {
	s.mu.Lock()
	if _, ok := s.methods[address]; ok {
		delete(s.methods, address)
		s.rebuildLocked()
	}
	s.mu.Unlock()
}

// SetMethodValue updates a registered method's value and rebuilds the
// tree. The value must match the method's declared type.
func (s *Server) SetMethodValue(address string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.methods[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMethodNotFound, address)
	}
	v, err := coerceValue(m.Type, value)
	if err != nil {
		return err
	}
	m.Value = v
	s.methods[address] = m
	s.rebuildLocked()
	return nil
}

func (s *Server) rebuildLocked() {
	s.tree = buildTree(s.methods)
}

// AdvertiseAs generates a randomized instance name, registers the control
// and directory endpoints with the discovery layer, and returns the name.
// The server must be started first so the directory port is known.
func (s *Server) AdvertiseAs(adv Advertiser, address net.IP) (string, error) {
	if !s.running.Load() {
		return "", ErrNotRunning
	}

	u := uuid.New()
	name := fmt.Sprintf("%s-%02X%02X%02X", s.config.NamePrefix, u[0], u[1], u[2])

	s.mu.Lock()
	s.name = name
	s.mu.Unlock()

	adv.Advertise(name, mdns.ServiceTypeOSC, s.config.OSCPort, address)
	adv.Advertise(name, mdns.ServiceTypeOSCQuery, s.Port(), address)

	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerDirectory,
		Category:  log.CategoryState,
		Instance:  name,
		Detail:    "advertised",
	})
	return name, nil
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r)

	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()

	if tree == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	node := lookupNode(tree, r.URL.Path)
	if node == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, node)
}

func (s *Server) handleHostInfo(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r)

	s.mu.Lock()
	name := s.name
	s.mu.Unlock()
	if name == "" {
		// Callers must advertise or set a name before exposing HOST_INFO.
		s.logger.Error("HOST_INFO requested before a name was set")
		http.Error(w, ErrNameUnset.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, HostInfo{
		Name: name,
		Extensions: map[string]bool{
			"ACCESS":   true,
			"CLIPMODE": false,
			"RANGE":    true,
			"TYPE":     true,
			"VALUE":    true,
		},
		OSCIP:        s.config.OSCIP,
		OSCPort:      s.config.OSCPort,
		OSCTransport: "UDP",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response write failed", "err", err)
	}
}

func (s *Server) logRequest(r *http.Request) {
	s.plog.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerDirectory,
		Category:   log.CategoryPacket,
		RemoteAddr: r.RemoteAddr,
		Address:    r.URL.Path,
	})
}
