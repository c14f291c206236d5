// Package config handles nhctl configuration.
//
// Configuration is loaded with overlay semantics:
//
//  1. Start with built-in defaults (embedded from default.toml)
//  2. Overlay with config file values (if the file exists)
//  3. Command line flags and NHCTL_LOG override at runtime
//
// The TOML decoder only sets fields present in the file, leaving the
// others at their defaults. A config file that exists but cannot be
// parsed is an error.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-nexthop"
	"github.com/frobware/go-nexthop/logging"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "/etc/nhctl/nhctl.toml"

// minMessageSize leaves room for the largest single attribute we emit
// without a group.
const minMessageSize = 64

// Config is the top-level nhctl configuration.
type Config struct {
	Netlink NetlinkConfig `toml:"netlink"`
	Display DisplayConfig `toml:"display"`
	Logging LoggingConfig `toml:"logging"`
}

// NetlinkConfig controls the rtnetlink sockets and request encoding.
type NetlinkConfig struct {
	MaxMessageSize int  `toml:"max_message_size"`
	ReceiveBuffer  int  `toml:"receive_buffer"`
	Strict         bool `toml:"strict"`
}

// DisplayConfig holds the defaults of the display flags.
type DisplayConfig struct {
	Family   string `toml:"family"`
	Details  bool   `toml:"details"`
	UserHZ   uint32 `toml:"user_hz"`
	NamesDir string `toml:"names_dir"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec such as "warn" or "warn,flush=debug".
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
	// Components sets per-component levels as a table.
	Components map[string]string `toml:"components"`
}

// ToSpec returns the log spec described by c. Components are appended
// to Level, sorted by name.
func (c *LoggingConfig) ToSpec() string {
	base := c.Level
	if base == "" {
		base = logging.DefaultLevel.String()
	}
	if len(c.Components) == 0 {
		return base
	}

	names := make([]string, 0, len(c.Components))
	for name := range c.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{base}
	for _, name := range names {
		parts = append(parts, name+"="+c.Components[name])
	}
	return strings.Join(parts, ",")
}

// DefaultConfig returns the configuration embedded in the binary.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load reads path on top of the defaults. An empty path means
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every value can be used.
func (c *Config) Validate() error {
	if c.Netlink.MaxMessageSize < minMessageSize {
		return fmt.Errorf("netlink.max_message_size must be at least %d, got %d", minMessageSize, c.Netlink.MaxMessageSize)
	}
	if c.Netlink.ReceiveBuffer < 0 {
		return fmt.Errorf("netlink.receive_buffer must not be negative")
	}
	if _, err := nexthop.ParseFamily(c.Display.Family); err != nil {
		return fmt.Errorf("display.family: %w", err)
	}
	if c.Display.UserHZ == 0 {
		return fmt.Errorf("display.user_hz must be positive")
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}
	if _, err := logging.ParseSpec(c.Logging.ToSpec()); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// FamilyValue returns the configured default address family. An invalid
// name, which Validate rejects, yields FamilyUnspec.
func (c *DisplayConfig) FamilyValue() nexthop.Family {
	f, _ := nexthop.ParseFamily(c.Family)
	return f
}
