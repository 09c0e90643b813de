// Package config decodes the daemon's optional TOML config file (§6): its
// identity, allow-list, and shell policy settings.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Environment modes, used the same way the teacher's appconfig does: to
// pick the logger's color/format and the default log level.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Version is set at build time via ldflags.
var Version = "untracked"

// Daemon is the decoded shape of the daemon's TOML config file. All keys
// are optional (§6); a zero Daemon means "accept any peer, use the host
// shell, allow no shell other than that default".
type Daemon struct {
	SecretKeyHex  string   `toml:"secret_key_hex"`
	SecretKeyFile string   `toml:"secret_key_file"`
	AllowedPeers  []string `toml:"allowed_peers"`
	DefaultShell  string   `toml:"default_shell"`
	AllowedShells []string `toml:"allowed_shells"`
}

// Load reads and decodes a TOML config file. An empty path is not an
// error: it returns a zero Daemon, matching "all keys optional". A path
// naming a file that cannot be read is an error.
func Load(path string) (*Daemon, error) {
	if path == "" {
		return &Daemon{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var d Daemon
	if err := toml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &d, nil
}
