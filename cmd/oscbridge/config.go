package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/mdns"
	"github.com/oscbridge-protocol/oscbridge-go/pkg/service"
)

// fileConfig is the YAML configuration file structure.
type fileConfig struct {
	SendHost    string `yaml:"send_host"`
	SendPort    uint16 `yaml:"send_port"`
	ReceivePort uint16 `yaml:"receive_port"`

	DirectoryBindAddress string `yaml:"directory_bind_address"`
	DirectoryPort        uint16 `yaml:"directory_port"`

	NamePrefix      string        `yaml:"name_prefix"`
	AvatarConfigDir string        `yaml:"avatar_config_dir"`
	NoDiscovery     bool          `yaml:"no_discovery"`
	QueryWindow     time.Duration `yaml:"query_window"`

	// Fallback is the discovery loopback-default policy: "all",
	// "first" or "none".
	Fallback string `yaml:"fallback"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// loadConfigFile overlays a YAML file onto the manager config.
func loadConfigFile(path string, cfg *service.Config) (logLevel, logFile string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read config %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", "", fmt.Errorf("parse config %s: %w", path, err)
	}

	if f.SendHost != "" {
		cfg.SendHost = f.SendHost
	}
	if f.SendPort != 0 {
		cfg.SendPort = f.SendPort
	}
	if f.ReceivePort != 0 {
		cfg.ReceivePort = f.ReceivePort
	}
	if f.DirectoryBindAddress != "" {
		cfg.DirectoryBindAddress = f.DirectoryBindAddress
	}
	if f.DirectoryPort != 0 {
		cfg.DirectoryPort = f.DirectoryPort
	}
	if f.NamePrefix != "" {
		cfg.NamePrefix = f.NamePrefix
	}
	if f.AvatarConfigDir != "" {
		cfg.AvatarConfigDir = f.AvatarConfigDir
	}
	if f.NoDiscovery {
		cfg.DisableDiscovery = true
	}
	if f.QueryWindow > 0 {
		cfg.QueryWindow = f.QueryWindow
	}
	if f.Fallback != "" {
		policy, err := parseFallback(f.Fallback)
		if err != nil {
			return "", "", err
		}
		cfg.Fallback = policy
	}
	return f.LogLevel, f.LogFile, nil
}

func parseFallback(name string) (mdns.FallbackPolicy, error) {
	switch name {
	case "all":
		return mdns.FallbackAllUnmatched, nil
	case "first":
		return mdns.FallbackFirstUnmatched, nil
	case "none":
		return mdns.FallbackNone, nil
	default:
		return 0, fmt.Errorf("unknown fallback policy %q (want all, first or none)", name)
	}
}
