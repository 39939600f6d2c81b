// Package config loads and saves notesampler settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/james-see/notesampler/pkg/instrument"
)

// ServerConfig configures the REST API.
type ServerConfig struct {
	Port         int      `json:"port"`
	ParseTimeout Duration `json:"parseTimeout"`
	MaxUploadMB  int      `json:"maxUploadMB"`
}

// PathsConfig locates sample and mapping files.
type PathsConfig struct {
	SoundsDir   string `json:"soundsDir"`
	MappingsDir string `json:"mappingsDir"`
}

// AudioConfig configures the playback device.
type AudioConfig struct {
	Enabled    bool `json:"enabled"`
	SampleRate int  `json:"sampleRate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Config is the main configuration structure
type Config struct {
	Server ServerConfig `json:"server"`
	Paths  PathsConfig  `json:"paths"`
	Audio  AudioConfig  `json:"audio"`
	Log    LogConfig    `json:"log"`

	// Instruments replaces the built-in program table when non-empty.
	Instruments map[int]string `json:"instruments,omitempty"`
}

// Duration is a time.Duration that reads and writes as "1.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ParseTimeout: Duration(5 * time.Second),
			MaxUploadMB:  16,
		},
		Paths: PathsConfig{
			SoundsDir:   filepath.Join("resources", "sounds"),
			MappingsDir: filepath.Join("resources", "mappings"),
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notesampler"), nil
}

// DefaultPath returns the full path to config.json
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path, or the default path when path is empty.
// A missing file yields the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ParseTimeout < 0 {
		return errors.New("server.parseTimeout must not be negative")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.maxUploadMB must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio.sampleRate %d out of range", c.Audio.SampleRate)
	}
	if c.Paths.SoundsDir == "" || c.Paths.MappingsDir == "" {
		return errors.New("paths.soundsDir and paths.mappingsDir are required")
	}
	if err := instrument.Validate(c.Instruments); err != nil {
		return fmt.Errorf("instruments: %w", err)
	}
	return nil
}

// Resolver returns the instrument table the config selects.
func (c *Config) Resolver() (*instrument.Resolver, error) {
	if len(c.Instruments) == 0 {
		return instrument.Default(), nil
	}
	return instrument.NewResolver(c.Instruments)
}
