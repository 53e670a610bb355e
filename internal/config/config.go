package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Web      WebConfig      `mapstructure:"web"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds the event journal settings.
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// CaptureConfig holds event source and filtering settings.
type CaptureConfig struct {
	Source          string        `mapstructure:"source"` // "adb", "x11", "replay", "auto"
	ADBSerial       string        `mapstructure:"adb_serial"`
	ReplayPath      string        `mapstructure:"replay_path"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxTreeDepth    int           `mapstructure:"max_tree_depth"`
	ExcludePackages []string      `mapstructure:"exclude_packages"`
	EventLogSize    int           `mapstructure:"event_log_size"`
}

// DaemonConfig holds daemon process settings.
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file"`
}

// WebConfig holds the read-only API server settings.
type WebConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging behavior settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "tapsum", "config.yaml")
	}
	return "config.yaml"
}

// Load reads configuration from the given file plus TAPSUM_* environment
// overrides. A missing file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TAPSUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				if _, pathErr := err.(*os.PathError); !pathErr {
					return nil, fmt.Errorf("failed to read config file: %w", err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// New returns the default configuration with environment overrides
// applied and no config file read. Used by short-lived commands.
func New() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TAPSUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")
	v.SetDefault("database.retention_days", 90)

	v.SetDefault("capture.source", "auto")
	v.SetDefault("capture.adb_serial", "")
	v.SetDefault("capture.replay_path", "")
	v.SetDefault("capture.poll_interval", "2s")
	v.SetDefault("capture.max_tree_depth", 50)
	v.SetDefault("capture.exclude_packages", []string{})
	v.SetDefault("capture.event_log_size", 500)

	v.SetDefault("daemon.pid_file", fmt.Sprintf("/tmp/tapsum-%d.pid", os.Getuid()))

	v.SetDefault("web.host", "localhost")
	v.SetDefault("web.port", 10000+os.Getuid())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Capture.Source {
	case "auto", "adb", "x11", "replay":
	default:
		return fmt.Errorf("unknown capture source %q (valid: auto, adb, x11, replay)", c.Capture.Source)
	}

	if c.Capture.Source == "replay" && c.Capture.ReplayPath == "" {
		return fmt.Errorf("replay source requires capture.replay_path")
	}

	if c.Capture.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll interval (%v) cannot be less than 100ms", c.Capture.PollInterval)
	}

	if c.Capture.MaxTreeDepth < 1 {
		return fmt.Errorf("max tree depth must be at least 1, got %d", c.Capture.MaxTreeDepth)
	}

	if c.Capture.EventLogSize < 1 {
		return fmt.Errorf("event log size must be positive, got %d", c.Capture.EventLogSize)
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	if c.Database.RetentionDays < 1 {
		return fmt.Errorf("retention days must be positive, got %d", c.Database.RetentionDays)
	}

	return nil
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
    Retention: %d days
  Capture:
    Source: %s
    Poll Interval: %v
    Max Tree Depth: %d
    Event Log Size: %d
  Daemon:
    PID File: %s
  Web:
    Host: %s
    Port: %d
  Logging:
    Level: %s
    Format: %s`,
		c.Database.Path,
		c.Database.RetentionDays,
		c.Capture.Source,
		c.Capture.PollInterval,
		c.Capture.MaxTreeDepth,
		c.Capture.EventLogSize,
		c.Daemon.PIDFile,
		c.Web.Host,
		c.Web.Port,
		c.Logging.Level,
		c.Logging.Format,
	)
}
