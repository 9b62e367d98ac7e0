package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// StoreConfig selects the database used for variable snapshots and run
// history. An empty Driver disables the store.
type StoreConfig struct {
	Driver string `toml:"driver" yaml:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn"`
	Device string `toml:"device" yaml:"device"`
}

type Configuration struct {
	Version   string `toml:"-" yaml:"-"`
	BuildDate string `toml:"-" yaml:"-"`
	Commit    string `toml:"-" yaml:"-"`

	Script string `toml:"script" yaml:"script"`

	// zero means the interpreter default
	Capacity int `toml:"capacity" yaml:"capacity"`
	MaxDepth int `toml:"max_depth" yaml:"max_depth"`

	Animate        bool   `toml:"animate" yaml:"animate"`
	Step           bool   `toml:"step" yaml:"step"`
	ReportPosition bool   `toml:"report_position" yaml:"report_position"`
	StrictLoops    bool   `toml:"strict_loops" yaml:"strict_loops"`
	Timeout        string `toml:"timeout" yaml:"timeout"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogFile  string `toml:"log_file" yaml:"log_file"`

	Store     StoreConfig      `toml:"store" yaml:"store"`
	Variables map[string]int32 `toml:"variables" yaml:"variables"`
}

var storeDrivers = []string{"sqlite3", "mysql", "postgres"}

// LoadConfiguration reads a TOML or YAML file, chosen by extension. Unknown
// keys are rejected.
func LoadConfiguration(path string) (Configuration, error) {
	var cfg Configuration
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config: %s: unknown keys %v", path, undecoded)
		}
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("config: %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Configuration) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	seen := make(map[string]string, len(c.Variables))
	for name := range c.Variables {
		if !validVariable(name) {
			return fmt.Errorf("variables: %q is not a single letter", name)
		}
		slot := strings.ToLower(name)
		if other, ok := seen[slot]; ok {
			return fmt.Errorf("variables: %q and %q name the same variable", other, name)
		}
		seen[slot] = name
	}
	if c.Store.Driver != "" {
		known := false
		for _, d := range storeDrivers {
			known = known || c.Store.Driver == d
		}
		if !known {
			return fmt.Errorf("store: unknown driver %q (want one of %s)", c.Store.Driver, strings.Join(storeDrivers, ", "))
		}
		if c.Store.DSN == "" {
			return fmt.Errorf("store: driver %s needs a dsn", c.Store.Driver)
		}
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (c Configuration) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	return d, nil
}

// ParseVariable parses a name=value assignment such as "a=1" or "B=0x10".
func ParseVariable(s string) (byte, int32, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || !validVariable(name) {
		return 0, 0, fmt.Errorf("invalid assignment %q, want letter=value", s)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 0, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value in %q: %w", s, err)
	}
	return name[0], int32(v), nil
}

func validVariable(name string) bool {
	if len(name) != 1 {
		return false
	}
	c := name[0] | 0x20
	return c >= 'a' && c <= 'z'
}
