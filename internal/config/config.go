package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/badalhalder99/vital/internal/fingerprint"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format   string `mapstructure:"format"`
	Level    string `mapstructure:"level"`
	Quiet    bool   `mapstructure:"quiet"`
	Verbose  bool   `mapstructure:"verbose"`
	TenantID string `mapstructure:"tenant_id"`

	Store     StoreConfig             `mapstructure:"store"`
	Mirror    MirrorConfig            `mapstructure:"mirror"`
	Tracker   TrackerConfig           `mapstructure:"tracker"`
	Device    fingerprint.Environment `mapstructure:"device"`
	Collector CollectorConfig         `mapstructure:"collector"`
}

// StoreConfig selects the key-value backend holding guest identities
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // memory, file, badger, redis
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	Prefix    string `mapstructure:"prefix"`
}

// MirrorConfig points guest visit mirror writes at a collector
type MirrorConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // empty disables mirroring
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TrackerConfig holds the visit bucketing thresholds
type TrackerConfig struct {
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
	TransitionGuard   time.Duration `mapstructure:"transition_guard"`
	PageVisitDebounce time.Duration `mapstructure:"page_visit_debounce"`
	MoveSampleRate    int           `mapstructure:"move_sample_rate"`
	MaxLogEntries     int           `mapstructure:"max_log_entries"`
}

// CollectorConfig configures `vital serve`
type CollectorConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "auto",
		Level:   "info",
		Quiet:   false,
		Verbose: false,
		Store: StoreConfig{
			Backend: "file",
			Prefix:  "vital:",
		},
		Mirror: MirrorConfig{
			Timeout: 5 * time.Second,
		},
		Tracker: TrackerConfig{
			InactivityTimeout: 5 * time.Minute,
			TransitionGuard:   2 * time.Second,
			PageVisitDebounce: 2 * time.Second,
			MoveSampleRate:    10,
			MaxLogEntries:     1000,
		},
		Device: fingerprint.Environment{
			ScreenWidth:    1920,
			ScreenHeight:   1080,
			ColorDepth:     24,
			ViewportWidth:  1920,
			ViewportHeight: 969,
			Timezone:       "UTC",
			Language:       "en-US",
			Platform:       "Linux x86_64",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Collector: CollectorConfig{
			Addr: ":5000",
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("vital")
	v.SetConfigType("yaml")

	// Config paths, lowest precedence first
	v.AddConfigPath("/etc/vital/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "vital"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("VITAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "VITAL_FORMAT")
	v.BindEnv("level", "VITAL_LEVEL")
	v.BindEnv("quiet", "VITAL_QUIET")
	v.BindEnv("verbose", "VITAL_VERBOSE")
	v.BindEnv("tenant_id", "VITAL_TENANT_ID")
	v.BindEnv("store.backend", "VITAL_STORE_BACKEND")
	v.BindEnv("store.path", "VITAL_STORE_PATH")
	v.BindEnv("store.redis_addr", "VITAL_REDIS_ADDR")
	v.BindEnv("mirror.endpoint", "VITAL_MIRROR_ENDPOINT")

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Try .vitalrc before falling back to defaults
		v.SetConfigName(".vitalrc")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that was loaded
func ConfigFile() string {
	v := viper.New()

	v.SetConfigName("vital")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	v.SetConfigName(".vitalrc")
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	return ""
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.prefix", cfg.Store.Prefix)
	v.SetDefault("mirror.timeout", cfg.Mirror.Timeout)
	v.SetDefault("tracker.inactivity_timeout", cfg.Tracker.InactivityTimeout)
	v.SetDefault("tracker.transition_guard", cfg.Tracker.TransitionGuard)
	v.SetDefault("tracker.page_visit_debounce", cfg.Tracker.PageVisitDebounce)
	v.SetDefault("tracker.move_sample_rate", cfg.Tracker.MoveSampleRate)
	v.SetDefault("tracker.max_log_entries", cfg.Tracker.MaxLogEntries)
	v.SetDefault("collector.addr", cfg.Collector.Addr)
}
