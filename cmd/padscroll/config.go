package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Input backends
const (
	backendEvdev = "evdev"
	backendSDL   = "sdl"
)

// Log formats
const (
	logFormatText = "text"
	logFormatJSON = "json"
)

// Config is the top-level configuration for the padscroll daemon.
//
// Keep defaults and validation centralized so the rest of the code can
// assume a well-formed config. Scroll timing is not configurable.
type Config struct {
	Input    InputConfig    `yaml:"input" toml:"input"`
	Viewport ViewportConfig `yaml:"viewport" toml:"viewport"`
	HTTP     HTTPConfig     `yaml:"http" toml:"http"`
	Uinput   UinputConfig   `yaml:"uinput" toml:"uinput"`
	IPC      IPCConfig      `yaml:"ipc" toml:"ipc"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

type InputConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // evdev or sdl

	// Device pins one evdev node. Empty means every gamepad under Dir.
	Device string `yaml:"device,omitempty" toml:"device,omitempty"`
	Dir    string `yaml:"dir" toml:"dir"`
	TickHz int    `yaml:"tick_hz" toml:"tick_hz"`
}

// ViewportConfig is the size assumed until a browser client reports its own.
type ViewportConfig struct {
	Width  float64 `yaml:"width" toml:"width"`
	Height float64 `yaml:"height" toml:"height"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
}

type UinputConfig struct {
	Enabled         bool    `yaml:"enabled" toml:"enabled"`
	Path            string  `yaml:"path" toml:"path"`
	PixelsPerDetent float64 `yaml:"pixels_per_detent" toml:"pixels_per_detent"`
	Smooth          bool    `yaml:"smooth" toml:"smooth"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path" toml:"socket_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Backend: backendEvdev,
			Dir:     defaultInputDir,
			TickHz:  defaultTickHz,
		},
		Viewport: ViewportConfig{
			Width:  defaultViewportWidth,
			Height: defaultViewportHeight,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Listen:  defaultHTTPListen,
		},
		Uinput: UinputConfig{
			Enabled:         false,
			Path:            defaultUinputPath,
			PixelsPerDetent: defaultPixelsPerDetent,
			Smooth:          true,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logFormatText,
		},
	}
}

// LoadConfigFile reads a config file on top of DefaultConfig.
//
// Files ending in .toml are decoded as TOML; anything else as YAML.
// Unknown fields are rejected in both formats to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("decode config toml: unknown keys: %s", strings.Join(keys, ", "))
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document. Decode into a
	// Node so KnownFields cannot turn a second document into an error.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// EncodeYAML renders c in the format LoadConfigFile reads back.
func (c Config) EncodeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// FlagOverrides holds values from flags the user explicitly set.
//
// main.go decides which flags exist and fills only the pointers whose flag
// was changed; Apply copies every non-nil pointer, zero values included.
type FlagOverrides struct {
	InputBackend *string
	InputDevice  *string
	InputDir     *string
	TickHz       *int

	ViewportWidth  *float64
	ViewportHeight *float64

	HTTPEnabled *bool
	HTTPListen  *string

	UinputEnabled         *bool
	UinputPath            *string
	UinputPixelsPerDetent *float64

	IPCSocketPath *string

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.InputBackend != nil {
		cfg.Input.Backend = *o.InputBackend
	}
	if o.InputDevice != nil {
		cfg.Input.Device = *o.InputDevice
	}
	if o.InputDir != nil {
		cfg.Input.Dir = *o.InputDir
	}
	if o.TickHz != nil {
		cfg.Input.TickHz = *o.TickHz
	}

	if o.ViewportWidth != nil {
		cfg.Viewport.Width = *o.ViewportWidth
	}
	if o.ViewportHeight != nil {
		cfg.Viewport.Height = *o.ViewportHeight
	}

	if o.HTTPEnabled != nil {
		cfg.HTTP.Enabled = *o.HTTPEnabled
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}

	if o.UinputEnabled != nil {
		cfg.Uinput.Enabled = *o.UinputEnabled
	}
	if o.UinputPath != nil {
		cfg.Uinput.Path = *o.UinputPath
	}
	if o.UinputPixelsPerDetent != nil {
		cfg.Uinput.PixelsPerDetent = *o.UinputPixelsPerDetent
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	switch c.Input.Backend {
	case backendEvdev:
		if c.Input.Device == "" && c.Input.Dir == "" {
			return errors.New("input.dir must not be empty when input.device is not set")
		}
	case backendSDL:
		if c.Input.Device != "" {
			return errors.New("input.device is only supported by the evdev backend")
		}
	default:
		return fmt.Errorf("input.backend must be %q or %q", backendEvdev, backendSDL)
	}
	if c.Input.TickHz <= 0 || c.Input.TickHz > 1000 {
		return errors.New("input.tick_hz must be between 1 and 1000")
	}

	// Viewport
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return errors.New("viewport.width and viewport.height must be > 0")
	}

	// HTTP
	if c.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			return fmt.Errorf("http.listen: %w", err)
		}
	}

	// uinput
	if c.Uinput.Enabled {
		if c.Uinput.Path == "" {
			return errors.New("uinput.enabled is true but uinput.path is empty")
		}
		if c.Uinput.PixelsPerDetent <= 0 {
			return errors.New("uinput.pixels_per_detent must be > 0")
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != logFormatText && c.Logging.Format != logFormatJSON {
		return fmt.Errorf("logging.format must be %q or %q", logFormatText, logFormatJSON)
	}

	if !c.HTTP.Enabled && !c.Uinput.Enabled {
		return errors.New("nothing to scroll: enable http or uinput")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
