package avatar

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/oscquery"
)

// DefaultPollInterval is how often the watcher rescans the directory.
const DefaultPollInterval = 2 * time.Second

var (
	ErrAlreadyRunning = errors.New("avatar: watcher already running")
	ErrUnknownAvatar  = errors.New("avatar: unknown avatar id")
)

// Registrar receives the active avatar's parameters. Satisfied by
// *oscquery.Server.
type Registrar interface {
	AddMethod(m oscquery.Method) error
	RemoveMethod(address string)
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Dir is the avatar configuration directory.
	Dir string

	// PollInterval between directory rescans. Zero uses the default.
	PollInterval time.Duration

	// Registrar receives the active avatar's parameter methods
	// (optional).
	Registrar Registrar

	// OnChange is invoked whenever the active avatar switches (optional).
	OnChange func(*Config)

	// Logger for debug output (optional).
	Logger *slog.Logger
}

type knownAvatar struct {
	path    string
	modTime time.Time
	config  *Config
}

// Watcher tracks avatar configuration files and the active avatar.
type Watcher struct {
	config WatcherConfig
	logger *slog.Logger

	mu      sync.Mutex
	known   map[string]knownAvatar // by avatar id
	current *Config

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the given directory.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return &Watcher{
		config: config,
		logger: logger,
		known:  make(map[string]knownAvatar),
	}
}

// Start scans the directory once and launches the polling loop.
func (w *Watcher) Start() error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	w.scan()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.pollLoop(ctx)
	return nil
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.scan()
		case <-ctx.Done():
			return
		}
	}
}

// scan reconciles the known-avatars table against the directory: new and
// modified files are reparsed, removed files dropped.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		w.logger.Debug("avatar directory scan failed", "dir", w.config.Dir, "err", err)
		return
	}

	present := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(w.config.Dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		present[path] = true

		w.mu.Lock()
		existing, isKnown := w.knownByPathLocked(path)
		unchanged := isKnown && existing.modTime.Equal(info.ModTime())
		w.mu.Unlock()
		if unchanged {
			continue
		}

		cfg, err := ParseConfigFile(path)
		if err != nil {
			w.logger.Warn("skipping avatar config", "file", entry.Name(), "err", err)
			continue
		}
		w.mu.Lock()
		w.known[cfg.ID] = knownAvatar{path: path, modTime: info.ModTime(), config: cfg}
		w.mu.Unlock()
		w.logger.Info("avatar config loaded", "id", cfg.ID, "name", cfg.Name, "parameters", len(cfg.Parameters))
	}

	w.mu.Lock()
	for id, k := range w.known {
		if !present[k.path] {
			delete(w.known, id)
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) knownByPathLocked(path string) (knownAvatar, bool) {
	for _, k := range w.known {
		if k.path == path {
			return k, true
		}
	}
	return knownAvatar{}, false
}

// Known returns the configs of every tracked avatar.
func (w *Watcher) Known() []*Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Config, 0, len(w.known))
	for _, k := range w.known {
		out = append(out, k.config)
	}
	return out
}

// Current returns the active avatar's config, nil when none is active.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// HandleAvatarChange activates the avatar with the given id, replacing the
// previously registered parameter set in the directory. Wire this to
// inbound avatar-change control messages.
func (w *Watcher) HandleAvatarChange(id string) error {
	w.mu.Lock()
	k, ok := w.known[id]
	if !ok {
		w.mu.Unlock()
		return ErrUnknownAvatar
	}
	previous := w.current
	w.current = k.config
	w.mu.Unlock()

	if w.config.Registrar != nil {
		if previous != nil {
			for _, p := range previous.Parameters {
				if addr := parameterAddress(p); addr != "" {
					w.config.Registrar.RemoveMethod(addr)
				}
			}
		}
		for _, p := range k.config.Parameters {
			m, ok := parameterMethod(p)
			if !ok {
				continue
			}
			if err := w.config.Registrar.AddMethod(m); err != nil {
				w.logger.Warn("could not register avatar parameter", "name", p.Name, "err", err)
			}
		}
	}

	w.logger.Info("active avatar changed", "id", id, "name", k.config.Name)
	if w.config.OnChange != nil {
		w.config.OnChange(k.config)
	}
	return nil
}

// Stop halts the polling loop. Safe to call more than once.
func (w *Watcher) Stop() {
	if w.running.CompareAndSwap(true, false) && w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func parameterAddress(p Parameter) string {
	if p.Input != nil {
		return p.Input.Address
	}
	if p.Output != nil {
		return p.Output.Address
	}
	return ""
}

// parameterMethod maps a parameter onto a directory method. Writable when
// an input endpoint exists, readable when an output one does.
func parameterMethod(p Parameter) (oscquery.Method, bool) {
	addr := parameterAddress(p)
	if addr == "" {
		return oscquery.Method{}, false
	}

	access := oscquery.AccessNone
	endpoint := p.Input
	if p.Input != nil {
		access |= oscquery.AccessWrite
	}
	if p.Output != nil {
		access |= oscquery.AccessRead
		if endpoint == nil {
			endpoint = p.Output
		}
	}

	var t oscquery.ValueType
	switch endpoint.Type {
	case "Int":
		t = oscquery.TypeInt
	case "Float":
		t = oscquery.TypeFloat
	case "Bool":
		t = oscquery.TypeBool
	default:
		t = oscquery.TypeString
	}

	return oscquery.Method{
		Address:     addr,
		Access:      access,
		Type:        t,
		Description: p.Name,
	}, true
}
