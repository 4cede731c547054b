package service

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

	"github.com/google/uuid"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/avatar"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/mdns"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/osc"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/oscquery"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/transport"
)

const (
	hostInfoProbeTimeout = 2 * time.Second
	receiveStreamBuffer  = 256
)

var (
	ErrAlreadyRunning = errors.New("service: already running")
	ErrNotRunning     = errors.New("service: not running")
)

// Config configures the Manager.
type Config struct {
	// SendHost is the peer's control host. Defaults to 127.0.0.1.
	SendHost string

	// SendPort is the fallback peer control port when discovery yields
	// nothing. Defaults to 9000.
	SendPort uint16

	// ReceivePort is the local control port. Defaults to 9001.
	ReceivePort uint16

	// DisableDiscovery skips multicast discovery entirely and goes
	// straight to the configured ports.
	DisableDiscovery bool

	// QueryWindow bounds each discovery query.
	QueryWindow time.Duration

	// Fallback selects the discovery loopback-default policy.
	Fallback mdns.FallbackPolicy

	// DirectoryBindAddress and DirectoryPort place the capability
	// directory server. A zero port picks an ephemeral one.
	DirectoryBindAddress string
	DirectoryPort        uint16

	// NamePrefix prefixes the advertised instance name.
	NamePrefix string

	// AvatarConfigDir enables the avatar watcher when non-empty.
	AvatarConfigDir string

	// Logger for debug output (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		SendHost:    "127.0.0.1",
		SendPort:    transport.DefaultSendPort,
		ReceivePort: transport.DefaultReceivePort,
		QueryWindow: mdns.DefaultQueryWindow,
		Fallback:    mdns.FallbackAllUnmatched,
		NamePrefix:  "MAOW",
	}
}

// PeerConnectionInfo describes the resolved control peer. SendPort is
// where the peer receives; ReceivePort is where this host receives.
type PeerConnectionInfo struct {
	Host         string
	SendPort     uint16
	ReceivePort  uint16
	InstanceName string

	// Discovered is false when the conventional port pair was assumed.
	Discovered bool
}

// SubsystemStatus reports one subsystem's state.
type SubsystemStatus struct {
	Running bool
	Detail  string
}

// Status is a point-in-time snapshot of the whole subsystem.
type Status struct {
	SessionID string
	Discovery SubsystemStatus
	Directory SubsystemStatus
	Transport SubsystemStatus
	Watcher   SubsystemStatus
	Peer      PeerConnectionInfo

	// ReceivePort and DirectoryPort are the bound local ports, zero
	// while the owning subsystem is down.
	ReceivePort   uint16
	DirectoryPort uint16

	// DiscoveredPeers lists the instance names seen by the most recent
	// discovery query.
	DiscoveredPeers []string
}

// Manager owns and sequences every subsystem.
type Manager struct {
	config    Config
	logger    *slog.Logger
	plog      log.Logger
	sessionID uuid.UUID

	mu        sync.Mutex
	discovery *mdns.Service
	directory *oscquery.Server
	receiver  *transport.Receiver
	sender    *transport.Sender
	watcher   *avatar.Watcher
	peer      PeerConnectionInfo
	peerNames []string

	out chan osc.Message

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a Manager. Nothing starts until StartAll.
func NewManager(config Config) (*Manager, error) {
	if config.SendHost == "" {
		config.SendHost = "127.0.0.1"
	}
	if config.SendPort == 0 {
		config.SendPort = transport.DefaultSendPort
	}
	if config.NamePrefix == "" {
		config.NamePrefix = "MAOW"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	return &Manager{
		config:    config,
		logger:    logger,
		plog:      plog,
		sessionID: uuid.New(),
		out:       make(chan osc.Message, receiveStreamBuffer),
	}, nil
}

// StartAll brings the subsystem up: discovery, the peer handshake, the
// control transport, the capability directory and the avatar watcher. A
// failed discovery degrades to the configured port pair instead of
// failing the start.
func (m *Manager) StartAll(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	m.mu.Lock()
	m.out = make(chan osc.Message, receiveStreamBuffer)
	out := m.out
	m.mu.Unlock()
	ok := false
	defer func() {
		if !ok {
			m.running.Store(false)
			m.stopSubsystems()
		}
	}()

	m.logger.Info("starting subsystem", "session", m.sessionID)
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: m.sessionID.String(),
		Direction: log.DirectionOut,
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		Detail:    "starting",
	})

	if !m.config.DisableDiscovery {
		disc, err := mdns.New(mdns.Config{
			QueryWindow:    m.config.QueryWindow,
			Fallback:       m.config.Fallback,
			Logger:         m.logger,
			ProtocolLogger: m.plog,
		})
		if err != nil {
			// Port 5353 is frequently owned by a system resolver.
			m.logger.Warn("discovery unavailable, using configured ports", "err", err)
		} else {
			m.mu.Lock()
			m.discovery = disc
			m.mu.Unlock()
			if err := disc.StartQueryListener(); err != nil {
				return fmt.Errorf("service: start discovery: %w", err)
			}
		}
	}

	peer := m.resolvePeer(ctx)
	m.mu.Lock()
	m.peer = peer
	m.mu.Unlock()

	recv, err := transport.NewReceiver(transport.ReceiverConfig{
		Port:           peer.ReceivePort,
		Logger:         m.logger,
		ProtocolLogger: m.plog,
	})
	if err != nil {
		return fmt.Errorf("service: control receiver: %w", err)
	}
	m.mu.Lock()
	m.receiver = recv
	m.peer.ReceivePort = recv.Port()
	m.mu.Unlock()
	if err := recv.Start(); err != nil {
		return fmt.Errorf("service: control receiver: %w", err)
	}

	sender, err := transport.NewSender(transport.SenderConfig{
		Host:           peer.Host,
		Port:           peer.SendPort,
		Logger:         m.logger,
		ProtocolLogger: m.plog,
	})
	if err != nil {
		return fmt.Errorf("service: control sender: %w", err)
	}
	m.mu.Lock()
	m.sender = sender
	m.mu.Unlock()

	dir := oscquery.NewServer(oscquery.Config{
		BindAddress:    m.config.DirectoryBindAddress,
		Port:           m.config.DirectoryPort,
		OSCIP:          "127.0.0.1",
		OSCPort:        recv.Port(),
		NamePrefix:     m.config.NamePrefix,
		Logger:         m.logger,
		ProtocolLogger: m.plog,
	})
	if err := dir.Start(); err != nil {
		return fmt.Errorf("service: directory server: %w", err)
	}
	m.mu.Lock()
	m.directory = dir
	disc := m.discovery
	m.mu.Unlock()

	if disc != nil {
		name, err := dir.AdvertiseAs(disc, net.IPv4(127, 0, 0, 1))
		if err != nil {
			return fmt.Errorf("service: advertise: %w", err)
		}
		m.logger.Info("advertised as", "instance", name)
	} else {
		u := uuid.New()
		dir.SetName(fmt.Sprintf("%s-%02X%02X%02X", m.config.NamePrefix, u[0], u[1], u[2]))
	}

	if m.config.AvatarConfigDir != "" {
		watcher := avatar.NewWatcher(avatar.WatcherConfig{
			Dir:       m.config.AvatarConfigDir,
			Registrar: dir,
			Logger:    m.logger,
		})
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("service: avatar watcher: %w", err)
		}
		m.mu.Lock()
		m.watcher = watcher
		m.mu.Unlock()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	m.wg.Add(1)
	go m.routeLoop(runCtx, recv, out)

	m.logger.Info("subsystem started",
		"peer", fmt.Sprintf("%s:%d", peer.Host, peer.SendPort),
		"receive_port", recv.Port(),
		"directory_port", dir.Port(),
		"discovered", peer.Discovered)
	ok = true
	return nil
}

// resolvePeer walks the fallback ladder: discovery plus a HOST_INFO probe
// first, then the configured port pair.
func (m *Manager) resolvePeer(ctx context.Context) PeerConnectionInfo {
	peer := PeerConnectionInfo{
		Host:        m.config.SendHost,
		SendPort:    m.config.SendPort,
		ReceivePort: m.config.ReceivePort,
	}

	if m.discovery == nil {
		return peer
	}

	found, err := m.discovery.QueryForService(ctx, mdns.ServiceTypeOSCQuery, "")
	if err != nil || len(found) == 0 {
		m.logger.Warn("no control peer discovered, assuming conventional ports",
			"send_port", peer.SendPort, "receive_port", peer.ReceivePort)
		return peer
	}
	m.recordPeerNames(found)

	candidate := found[0]
	probeCtx, cancel := context.WithTimeout(ctx, hostInfoProbeTimeout)
	defer cancel()

	info, err := oscquery.NewClient(hostInfoProbeTimeout).
		FetchHostInfo(probeCtx, candidate.Address.String(), candidate.Port)
	if err != nil {
		m.logger.Warn("peer directory probe failed, assuming conventional ports",
			"instance", candidate.ServiceName, "err", err)
		info = nil
	}

	peer = applyProbe(peer, candidate, info)
	if peer.Discovered {
		m.logger.Info("control peer resolved",
			"instance", peer.InstanceName, "host", peer.Host, "port", peer.SendPort)
	}
	return peer
}

// applyProbe merges a discovered directory candidate and its HOST_INFO
// reply into the conventional defaults. The discovered host always wins.
// A nil reply (failed probe) and a reply without an OSC_PORT both keep
// the conventional send port.
func applyProbe(peer PeerConnectionInfo, candidate mdns.DiscoveredService, info *oscquery.HostInfo) PeerConnectionInfo {
	peer.Host = candidate.Address.String()
	peer.InstanceName = candidate.ServiceName
	if info == nil {
		return peer
	}
	if info.OSCPort != 0 {
		peer.SendPort = info.OSCPort
	}
	if info.Name != "" {
		peer.InstanceName = info.Name
	}
	peer.Discovered = true
	return peer
}

// routeLoop moves inbound messages to the consumer stream and reacts to
// avatar changes along the way.
func (m *Manager) routeLoop(ctx context.Context, recv *transport.Receiver, out chan<- osc.Message) {
	defer m.wg.Done()
	defer close(out)

	for {
		select {
		case msg, open := <-recv.Messages():
			if !open {
				return
			}
			m.handleInbound(msg)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handleInbound(msg osc.Message) {
	if msg.Address != "/avatar/change" || len(msg.Args) == 0 {
		return
	}
	m.mu.Lock()
	watcher := m.watcher
	m.mu.Unlock()
	if watcher == nil {
		return
	}
	id, ok := msg.Args[0].(string)
	if !ok {
		return
	}
	if err := watcher.HandleAvatarChange(id); err != nil {
		m.logger.Warn("avatar change for unknown avatar", "id", id)
	}
}

// TakeReceiveStream returns the inbound control message stream. The
// channel closes on StopAll.
func (m *Manager) TakeReceiveStream() <-chan osc.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

// Directory returns the capability directory server, nil before StartAll.
func (m *Manager) Directory() *oscquery.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.directory
}

// Peer returns the resolved peer endpoints.
func (m *Manager) Peer() PeerConnectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peer
}

// DiscoverLocalPeers runs one directory-service discovery query and
// returns whatever responded.
func (m *Manager) DiscoverLocalPeers(ctx context.Context) ([]mdns.DiscoveredService, error) {
	m.mu.Lock()
	disc := m.discovery
	m.mu.Unlock()
	if disc == nil {
		return nil, nil
	}
	found, err := disc.QueryForService(ctx, mdns.ServiceTypeOSCQuery, "")
	if err == nil {
		m.recordPeerNames(found)
	}
	return found, err
}

// recordPeerNames keeps the instance names from the latest discovery
// query for Status.
func (m *Manager) recordPeerNames(found []mdns.DiscoveredService) {
	names := make([]string, 0, len(found))
	for _, svc := range found {
		names = append(names, svc.ServiceName)
	}
	m.mu.Lock()
	m.peerNames = names
	m.mu.Unlock()
}

// Status reports the state of every subsystem.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		SessionID:       m.sessionID.String(),
		Peer:            m.peer,
		DiscoveredPeers: append([]string(nil), m.peerNames...),
	}
	running := m.running.Load()

	if m.discovery != nil {
		st.Discovery = SubsystemStatus{Running: running, Detail: "multicast"}
	} else {
		st.Discovery = SubsystemStatus{Detail: "unavailable"}
	}
	if m.directory != nil {
		st.DirectoryPort = m.directory.Port()
		st.Directory = SubsystemStatus{
			Running: running,
			Detail:  fmt.Sprintf("port %d, name %s", st.DirectoryPort, m.directory.Name()),
		}
	}
	if m.receiver != nil {
		st.ReceivePort = m.peer.ReceivePort
		st.Transport = SubsystemStatus{
			Running: running,
			Detail:  fmt.Sprintf("receive %d, send %s:%d", m.peer.ReceivePort, m.peer.Host, m.peer.SendPort),
		}
	}
	if m.watcher != nil {
		detail := "no active avatar"
		if cur := m.watcher.Current(); cur != nil {
			detail = cur.Name
		}
		st.Watcher = SubsystemStatus{Running: running, Detail: detail}
	}
	return st
}

// StopAll tears the subsystem down in reverse start order. Safe to call
// more than once and after a partial start.
func (m *Manager) StopAll() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.stopSubsystems()
	m.logger.Info("subsystem stopped", "session", m.sessionID)
	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: m.sessionID.String(),
		Direction: log.DirectionOut,
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		Detail:    "stopped",
	})
}

func (m *Manager) stopSubsystems() {
	m.mu.Lock()
	watcher, directory, receiver, discovery := m.watcher, m.directory, m.receiver, m.discovery
	cancel := m.cancel
	m.watcher, m.directory, m.receiver, m.sender, m.discovery, m.cancel = nil, nil, nil, nil, nil, nil
	m.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	if directory != nil {
		directory.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if receiver != nil {
		receiver.Stop()
	}
	if discovery != nil {
		discovery.Stop()
	}
	m.wg.Wait()
}
