// Command oscbridge runs the OSC bridge subsystem: multicast discovery,
// the capability directory, the UDP control transport and the avatar
// watcher.
//
// Usage:
//
//	oscbridge [flags]
//
// Flags:
//
//	-config string       YAML configuration file path
//	-send-host string    Peer control host (default "127.0.0.1")
//	-send-port int       Peer control port fallback (default 9000)
//	-receive-port int    Local control port (default 9001)
//	-directory-port int  Capability directory port (0 = ephemeral)
//	-name-prefix string  Advertised instance name prefix (default "MAOW")
//	-avatar-dir string   Avatar configuration directory
//	-no-discovery        Skip multicast discovery
//	-fallback string     Discovery loopback policy: all, first, none
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-log-file string     Protocol event log file (CBOR)
//	-interactive         Start the interactive shell
//
// Examples:
//
//	# Run against a local peer with defaults
//	oscbridge
//
//	# Interactive session with avatar tracking
//	oscbridge -interactive -avatar-dir ~/.local/share/peer/Avatars
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/cmd/oscbridge/interactive"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/service"
)

type cliFlags struct {
	configFile    string
	sendHost      string
	sendPort      uint
	receivePort   uint
	directoryPort uint
	namePrefix    string
	avatarDir     string
	noDiscovery   bool
	queryWindow   time.Duration
	fallback      string
	logLevel      string
	logFile       string
	interactive   bool
}

var flags cliFlags

func init() {
	flag.StringVar(&flags.configFile, "config", "", "YAML configuration file path")
	flag.StringVar(&flags.sendHost, "send-host", "", "Peer control host")
	flag.UintVar(&flags.sendPort, "send-port", 0, "Peer control port fallback")
	flag.UintVar(&flags.receivePort, "receive-port", 0, "Local control port")
	flag.UintVar(&flags.directoryPort, "directory-port", 0, "Capability directory port (0 = ephemeral)")
	flag.StringVar(&flags.namePrefix, "name-prefix", "", "Advertised instance name prefix")
	flag.StringVar(&flags.avatarDir, "avatar-dir", "", "Avatar configuration directory")
	flag.BoolVar(&flags.noDiscovery, "no-discovery", false, "Skip multicast discovery")
	flag.DurationVar(&flags.queryWindow, "query-window", 0, "Discovery query window")
	flag.StringVar(&flags.fallback, "fallback", "", "Discovery loopback policy: all, first, none")
	flag.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.logFile, "log-file", "", "Protocol event log file (CBOR)")
	flag.BoolVar(&flags.interactive, "interactive", false, "Start the interactive shell")
}

func main() {
	flag.Parse()

	cfg := service.DefaultConfig()
	logLevel := flags.logLevel
	logFile := flags.logFile

	if flags.configFile != "" {
		fileLevel, fileLog, err := loadConfigFile(flags.configFile, &cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "oscbridge: %v\n", err)
			os.Exit(1)
		}
		if fileLevel != "" {
			logLevel = fileLevel
		}
		if logFile == "" {
			logFile = fileLog
		}
	}

	// Flags override the file.
	if flags.sendHost != "" {
		cfg.SendHost = flags.sendHost
	}
	if flags.sendPort != 0 {
		cfg.SendPort = uint16(flags.sendPort)
	}
	if flags.receivePort != 0 {
		cfg.ReceivePort = uint16(flags.receivePort)
	}
	if flags.directoryPort != 0 {
		cfg.DirectoryPort = uint16(flags.directoryPort)
	}
	if flags.namePrefix != "" {
		cfg.NamePrefix = flags.namePrefix
	}
	if flags.avatarDir != "" {
		cfg.AvatarConfigDir = flags.avatarDir
	}
	if flags.noDiscovery {
		cfg.DisableDiscovery = true
	}
	if flags.queryWindow > 0 {
		cfg.QueryWindow = flags.queryWindow
	}
	if flags.fallback != "" {
		policy, err := parseFallback(flags.fallback)
		if err != nil {
			fmt.Fprintf(os.Stderr, "oscbridge: %v\n", err)
			os.Exit(1)
		}
		cfg.Fallback = policy
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(logLevel),
	}))
	cfg.Logger = logger

	var plogs []log.Logger
	if logFile != "" {
		fl, err := log.NewFileLogger(logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "oscbridge: open protocol log: %v\n", err)
			os.Exit(1)
		}
		defer fl.Close()
		plogs = append(plogs, fl)
	}
	if logLevel == "debug" {
		plogs = append(plogs, log.NewSlogAdapter(logger))
	}
	switch len(plogs) {
	case 0:
	case 1:
		cfg.ProtocolLogger = plogs[0]
	default:
		cfg.ProtocolLogger = log.NewMultiLogger(plogs...)
	}

	mgr, err := service.NewManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oscbridge: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.StartAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "oscbridge: start: %v\n", err)
		os.Exit(1)
	}
	defer mgr.StopAll()

	if flags.interactive {
		shell, err := interactive.New(mgr)
		if err != nil {
			logger.Error("cannot start interactive shell", "err", err)
			os.Exit(1)
		}
		shell.Run(ctx, cancel)
		return
	}

	// Daemon mode: drain the receive stream into the log until signalled.
	go func() {
		for msg := range mgr.TakeReceiveStream() {
			logger.Debug("control message", "address", msg.Address, "args", msg.Args)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
