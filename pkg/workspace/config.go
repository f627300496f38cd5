package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
)

const configFile = "config.toml"

// Storage backends.
const (
	BackendDisk   = "disk"
	BackendBadger = "badger"
)

// Config is the workspace-local configuration stored in config.toml.
type Config struct {
	User    UserConfig    `toml:"user"`
	Core    CoreConfig    `toml:"core"`
	Storage StorageConfig `toml:"storage"`
	Merge   MergeConfig   `toml:"merge"`
	Log     LogConfig     `toml:"log"`
}

type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
	ID    string `toml:"id,omitempty"`
}

type CoreConfig struct {
	DefaultBranch string `toml:"default_branch"`
}

type StorageConfig struct {
	Backend  string `toml:"backend"`
	Compress bool   `toml:"compress"`
}

type MergeConfig struct {
	ResolveLines bool `toml:"resolve_lines"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration a new workspace starts with.
func DefaultConfig() *Config {
	return &Config{
		Core:    CoreConfig{DefaultBranch: repo.DefaultBranch},
		Storage: StorageConfig{Backend: BackendDisk, Compress: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Author returns the configured user as a commit author.
func (c *Config) Author() object.Author {
	return object.Author{Name: c.User.Name, Email: c.User.Email, ID: c.User.ID}
}

// LogLevel parses Log.Level, defaulting to info.
func (c *Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendDisk, BackendBadger:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Core.DefaultBranch == "" {
		return errors.New("config: core.default_branch is empty")
	}
	return nil
}

// ReadConfig reads a config file. A missing file yields DefaultConfig;
// keys absent from the file keep their default values.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// WriteConfig atomically writes cfg to path.
func WriteConfig(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
