// Package config loads the editor configuration.
//
// Values are layered: built-in defaults, then each YAML file in order (user
// file, then project file), then TAPESTRY_* environment variables. The
// result is validated with struct tags.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the configuration file looked up in the working directory.
const ProjectFile = ".tapestry.yaml"

// Store drivers.
const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config is the editor configuration.
type Config struct {
	Log       Log       `yaml:"log"`
	Store     Store     `yaml:"store"`
	Autosave  Autosave  `yaml:"autosave"`
	History   History   `yaml:"history"`
	Resources Resources `yaml:"resources"`
	Server    Server    `yaml:"server"`
	// NodeTypes lists definition files loaded over the built-in node types.
	NodeTypes []string `yaml:"node_types"`
	// NodeTypeDirs lists directories holding one node type document each.
	NodeTypeDirs []string `yaml:"node_type_dirs"`
}

type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type Store struct {
	Driver string `yaml:"driver" validate:"oneof=file memory redis"`
	// Path is the base directory of the file driver. Empty means document
	// keys are plain file paths.
	Path  string `yaml:"path"`
	Redis Redis  `yaml:"redis"`
}

type Redis struct {
	Addr   string        `yaml:"addr" validate:"omitempty,hostname_port"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl" validate:"min=0"`
	// Lock guards documents with a redis lock shared between processes.
	Lock bool `yaml:"lock"`
}

type Autosave struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"min=0"`
	Every    int           `yaml:"every" validate:"min=0"`
	// Remote also writes recovery copies to the redis slot.
	Remote bool `yaml:"remote"`
	// EncryptionKey is a hex encoded AES-256 key for remote copies.
	EncryptionKey string `yaml:"encryption_key" validate:"omitempty,hexadecimal,len=64"`
}

type History struct {
	Limit int `yaml:"limit" validate:"min=0"`
}

type Resources struct {
	Root     string   `yaml:"root"`
	Watch    bool     `yaml:"watch"`
	Patterns []string `yaml:"patterns"`
}

type Server struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:   Log{Level: "info"},
		Store: Store{Driver: DriverFile, Redis: Redis{Prefix: "tapestry:doc:", TTL: 7 * 24 * time.Hour}},
		Autosave: Autosave{
			Enabled:  true,
			Interval: 30 * time.Second,
			Every:    20,
		},
		History: History{Limit: 200},
		Server:  Server{Addr: "127.0.0.1:8080"},
	}
}

// EncryptionKeyBytes decodes the autosave encryption key. It returns nil
// when no key is configured.
func (c Config) EncryptionKeyBytes() ([]byte, error) {
	if c.Autosave.EncryptionKey == "" {
		return nil, nil
	}
	return hex.DecodeString(c.Autosave.EncryptionKey)
}

// DefaultPaths returns the user file followed by the project file.
func DefaultPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "tapestry", "config.yaml"))
	}
	return append(paths, ProjectFile)
}

// Load layers the given files over the defaults, applies the environment
// and validates. Missing files are skipped.
func Load(paths ...string) (Config, error) {
	cfg := Default()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("failed to read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", p, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// UsesRedis reports whether any component needs the redis connection.
func (c Config) UsesRedis() bool {
	return c.Store.Driver == DriverRedis || c.Autosave.Remote || c.Store.Redis.Lock
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if c.UsesRedis() && c.Store.Redis.Addr == "" {
		return errors.New("invalid config: store.redis.addr is required when redis is used")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from TAPESTRY_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("TAPESTRY_LOG_LEVEL", &cfg.Log.Level)
	str("TAPESTRY_STORE_DRIVER", &cfg.Store.Driver)
	str("TAPESTRY_STORE_PATH", &cfg.Store.Path)
	str("TAPESTRY_REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("TAPESTRY_REDIS_PREFIX", &cfg.Store.Redis.Prefix)
	duration("TAPESTRY_REDIS_TTL", &cfg.Store.Redis.TTL)
	boolean("TAPESTRY_REDIS_LOCK", &cfg.Store.Redis.Lock)
	boolean("TAPESTRY_AUTOSAVE_ENABLED", &cfg.Autosave.Enabled)
	duration("TAPESTRY_AUTOSAVE_INTERVAL", &cfg.Autosave.Interval)
	integer("TAPESTRY_AUTOSAVE_EVERY", &cfg.Autosave.Every)
	boolean("TAPESTRY_AUTOSAVE_REMOTE", &cfg.Autosave.Remote)
	str("TAPESTRY_ENCRYPTION_KEY", &cfg.Autosave.EncryptionKey)
	integer("TAPESTRY_HISTORY_LIMIT", &cfg.History.Limit)
	str("TAPESTRY_RESOURCES_ROOT", &cfg.Resources.Root)
	boolean("TAPESTRY_RESOURCES_WATCH", &cfg.Resources.Watch)
	str("TAPESTRY_SERVER_ADDR", &cfg.Server.Addr)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}
