package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"librarydesk/internal/domain"
)

// Config is the full librarydesk configuration.
type Config struct {
	Gateway       GatewayConfig         `mapstructure:"gateway"`
	Stats         StatsConfig           `mapstructure:"stats"`
	Storage       StorageConfig         `mapstructure:"storage"`
	Import        ImportConfig          `mapstructure:"import"`
	Schedule      ScheduleConfig        `mapstructure:"schedule"`
	Log           LogConfig             `mapstructure:"log"`
	MCP           MCPConfig             `mapstructure:"mcp"`
	ExportTargets []domain.ExportTarget `mapstructure:"export_targets"`
}

type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 disables the timeout
}

type StatsConfig struct {
	RecentWindow time.Duration `mapstructure:"recent_window"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// DBPath is the sqlite file that keeps run history and settings.
func (s StorageConfig) DBPath() string {
	return filepath.Join(s.DataDir, "librarydesk.db")
}

type ImportConfig struct {
	WatchDir string `mapstructure:"watch_dir"` // empty disables the drop folder
}

// ScheduleConfig holds cron expressions. Empty disables the job.
type ScheduleConfig struct {
	Refresh string         `mapstructure:"refresh"`
	Export  []ScheduledRun `mapstructure:"export"`
}

// ScheduledRun exports to Target on Cron.
type ScheduledRun struct {
	Target string `mapstructure:"target"`
	Cron   string `mapstructure:"cron"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json | auto
}

type MCPConfig struct {
	Name string `mapstructure:"name"`
}

// EnvPrefix prefixes every environment override, e.g.
// LIBRARYDESK_GATEWAY_BASE_URL.
const EnvPrefix = "LIBRARYDESK"

// Load reads librarydesk.yaml (or the file at path when set), applies
// environment overrides and validates the result. A missing config file
// is not an error; defaults and the environment are enough to run.
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("librarydesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "librarydesk"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyTargetPasswords()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.base_url", "http://localhost:8000")
	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("stats.recent_window", 30*24*time.Hour)
	v.SetDefault("storage.data_dir", defaultDataDir())
	v.SetDefault("import.watch_dir", "")
	v.SetDefault("schedule.refresh", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("mcp.name", "librarydesk")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".librarydesk"
	}
	return filepath.Join(home, ".librarydesk")
}

// applyTargetPasswords lets LIBRARYDESK_TARGET_<NAME>_PASSWORD supply a
// password that is kept out of the config file.
func (c *Config) applyTargetPasswords() {
	for i, t := range c.ExportTargets {
		key := EnvPrefix + "_TARGET_" + envName(t.Name) + "_PASSWORD"
		if pw, ok := os.LookupEnv(key); ok {
			c.ExportTargets[i].Password = pw
		}
	}
}

func envName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return errors.New("gateway.base_url must not be empty")
	}
	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must not be negative: %s", c.Gateway.Timeout)
	}
	if c.Stats.RecentWindow <= 0 {
		return fmt.Errorf("stats.recent_window must be positive: %s", c.Stats.RecentWindow)
	}
	switch c.Log.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("log.format must be console, json or auto: %q", c.Log.Format)
	}

	seen := make(map[string]bool, len(c.ExportTargets))
	for i, t := range c.ExportTargets {
		if t.Name == "" {
			return fmt.Errorf("export_targets[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("export_targets[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if !t.Driver.Valid() {
			return fmt.Errorf("export_targets[%d] %q: unknown driver %q", i, t.Name, t.Driver)
		}
	}
	for i, s := range c.Schedule.Export {
		if !seen[s.Target] {
			return fmt.Errorf("schedule.export[%d]: unknown target %q", i, s.Target)
		}
	}
	return nil
}

// Target returns the export target with the given name.
func (c *Config) Target(name string) (domain.ExportTarget, bool) {
	for _, t := range c.ExportTargets {
		if t.Name == name {
			return t, true
		}
	}
	return domain.ExportTarget{}, false
}
