package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultServerID  = "pyserve"
	DefaultHostID    = "pyhost"
	DefaultAddr      = "127.0.0.1:31775"
	DefaultDataPath  = "data"
	DefaultFrameRate = "1s"
)

// ServerConfig configures cmd/pyserve. Env vars override file values.
type ServerConfig struct {
	ID              string   `toml:"id" env:"PYSERVE_ID"`
	Addr            string   `toml:"addr" env:"PYSERVE_ADDR"`
	AdminAddr       string   `toml:"admin_addr" env:"PYSERVE_ADMIN_ADDR"`
	CorsOrigins     []string `toml:"cors_origins" env:"PYSERVE_CORS_ORIGINS" envSeparator:","`
	MaxPayloadBytes uint32   `toml:"max_payload_bytes" env:"PYSERVE_MAX_PAYLOAD_BYTES"`
	QueueSize       int      `toml:"queue_size" env:"PYSERVE_QUEUE_SIZE"`
	WriteTimeout    string   `toml:"write_timeout" env:"PYSERVE_WRITE_TIMEOUT"`
}

// HostConfig configures cmd/pyhost. Args has no env override.
type HostConfig struct {
	ID            string   `toml:"id" env:"PYSERVE_HOST_ID"`
	DataPath      string   `toml:"data_path" env:"PYSERVE_DATA_PATH"`
	ScriptPath    string   `toml:"script_path" env:"PYSERVE_SCRIPT_PATH"`
	SearchPaths   []string `toml:"search_paths" env:"PYSERVE_SEARCH_PATHS" envSeparator:","`
	Constructor   string   `toml:"constructor" env:"PYSERVE_CONSTRUCTOR"`
	Method        string   `toml:"method" env:"PYSERVE_METHOD"`
	Call          string   `toml:"call" env:"PYSERVE_CALL"`
	Args          []any    `toml:"args"`
	DialAddr      string   `toml:"dial_addr" env:"PYSERVE_DIAL_ADDR"`
	FrameInterval string   `toml:"frame_interval" env:"PYSERVE_FRAME_INTERVAL"`
	MaxFrames     uint64   `toml:"max_frames" env:"PYSERVE_MAX_FRAMES"`
	TickTimeout   string   `toml:"tick_timeout" env:"PYSERVE_TICK_TIMEOUT"`
	AdminAddr     string   `toml:"admin_addr" env:"PYSERVE_HOST_ADMIN_ADDR"`
	CorsOrigins   []string `toml:"cors_origins" env:"PYSERVE_HOST_CORS_ORIGINS" envSeparator:","`
}

// LoadServerConfig reads path (skipped when empty), applies env overrides,
// fills defaults and validates.
func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := load(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = DefaultServerID
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func LoadHostConfig(path string) (HostConfig, error) {
	var cfg HostConfig
	if err := load(path, &cfg); err != nil {
		return HostConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = DefaultHostID
	}
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultDataPath
	}
	if cfg.DialAddr == "" {
		cfg.DialAddr = DefaultAddr
	}
	if cfg.FrameInterval == "" {
		cfg.FrameInterval = DefaultFrameRate
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func load(path string, out any) error {
	if path != "" {
		if err := loadToml(path, out); err != nil {
			return err
		}
	}
	if err := env.Parse(out); err != nil {
		return fmt.Errorf("config env overrides failed: %w", err)
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if cfg.QueueSize < 0 {
		return fmt.Errorf("server config queue_size must not be negative")
	}
	if _, err := ParseDuration("write_timeout", cfg.WriteTimeout); err != nil {
		return err
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("host config missing id")
	}
	if strings.TrimSpace(cfg.DataPath) == "" && strings.TrimSpace(cfg.ScriptPath) == "" {
		return fmt.Errorf("host config requires data_path or script_path")
	}
	interval, err := ParseDuration("frame_interval", cfg.FrameInterval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("host config frame_interval must be positive")
	}
	if _, err := ParseDuration("tick_timeout", cfg.TickTimeout); err != nil {
		return err
	}
	for i, arg := range cfg.Args {
		switch arg.(type) {
		case int64, float64, string, bool:
		default:
			return fmt.Errorf("host config args[%d]: unsupported %T", i, arg)
		}
	}
	return nil
}

// ParseDuration parses value as a Go duration; empty means zero.
func ParseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
