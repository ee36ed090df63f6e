// Package xdg provides XDG Base Directory support and the swarm CLI
// config file.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const appName = "swarm"

// ConfigHome returns the XDG config home directory.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// DataHome returns the XDG data home directory.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

// ConfigDir returns the swarm config directory: ConfigHome()/swarm.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), appName)
}

// DataDir returns the swarm data directory: DataHome()/swarm.
func DataDir() string {
	return filepath.Join(DataHome(), appName)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Config is the CLI's persisted identity and pool settings. Private keys
// are never stored here; they come from --key or SWARM_PRIVATE_KEY.
type Config struct {
	Pool        string   `toml:"pool"`
	ProviderENS string   `toml:"provider_ens"`
	Wallet      string   `toml:"wallet"`
	GPUs        []string `toml:"gpus,omitempty"`
	Models      []string `toml:"models,omitempty"`
	IPFSAPI     string   `toml:"ipfs_api,omitempty"`
	Coordinator string   `toml:"coordinator,omitempty"`
}

// LoadConfig reads the config file. A missing file is an error: run
// `swarm init` first.
func LoadConfig() (Config, error) {
	var cfg Config
	path := ConfigPath()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("no config at %s (run `swarm init`)", path)
		}
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config file, creating the directory if needed.
func SaveConfig(cfg Config) error {
	if err := os.MkdirAll(ConfigDir(), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
