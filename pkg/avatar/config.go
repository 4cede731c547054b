package avatar

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrConfigParse marks unreadable or malformed avatar configuration files.
var ErrConfigParse = errors.New("avatar: config parse")

// Endpoint is one direction of a parameter: the control address and the
// declared value type ("Int", "Float" or "Bool").
type Endpoint struct {
	Address string `json:"address"`
	Type    string `json:"type"`
}

// Parameter is one avatar parameter. Input is the writable direction,
// Output the readable one; either may be absent.
type Parameter struct {
	Name   string    `json:"name"`
	Input  *Endpoint `json:"input,omitempty"`
	Output *Endpoint `json:"output,omitempty"`
}

// Config is the on-disk avatar configuration document.
type Config struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
}

// ParseConfigFile reads and parses one avatar configuration file.
func ParseConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfigParse, path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: %s: missing avatar id", ErrConfigParse, path)
	}
	return &cfg, nil
}

// LoadConfigDir parses every .json file in dir, logging and skipping the
// ones that fail.
func LoadConfigDir(dir string, logger *slog.Logger) []*Config {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("cannot read avatar config directory", "dir", dir, "err", err)
		return nil
	}

	var out []*Config
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		cfg, err := ParseConfigFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("skipping avatar config", "file", entry.Name(), "err", err)
			continue
		}
		out = append(out, cfg)
	}
	return out
}
