package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	UI        UIConfig        `mapstructure:"ui"`
	User      UserConfig      `mapstructure:"user"`
	Authors   AuthorsConfig   `mapstructure:"authors"`
}

// DatabaseConfig holds sqlite settings. An empty Migrations path uses the
// migrations compiled into the binary.
type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	Migrations string `mapstructure:"migrations"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend      string        `mapstructure:"backend"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// FirestoreConfig names the project and collections.
type FirestoreConfig struct {
	ProjectID           string `mapstructure:"project_id"`
	CreditsCollection   string `mapstructure:"credits_collection"`
	RemindersCollection string `mapstructure:"reminders_collection"`
	NotesCollection     string `mapstructure:"notes_collection"`
	RolesCollection     string `mapstructure:"roles_collection"`
}

// RedisConfig enables the shared reminder day store when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RiskConfig holds the risk label thresholds.
type RiskConfig struct {
	MediumThreshold     int     `mapstructure:"medium_threshold"`
	HighThreshold       int     `mapstructure:"high_threshold"`
	HighDollarThreshold float64 `mapstructure:"high_dollar_threshold"`
}

// RemindersConfig holds reminder check settings.
type RemindersConfig struct {
	CheckInterval     time.Duration `mapstructure:"check_interval"`
	DefaultRemindTime string        `mapstructure:"default_remind_time"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Timezone       string `mapstructure:"timezone"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	PageSize       int    `mapstructure:"page_size"`
}

// UserConfig identifies the signed-in user.
type UserConfig struct {
	Email string `mapstructure:"email"`
	Role  string `mapstructure:"role"`
}

// AuthorsConfig maps email local parts to status timeline tags.
type AuthorsConfig struct {
	Aliases map[string]string `mapstructure:"aliases"`
}

// Location resolves UI.Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.UI.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.UI.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func configPath() string {
	if p := os.Getenv("CIC_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "cic", "config.toml")
}

func newViper() *viper.Viper {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "cic", "cic.db"))
	v.SetDefault("database.migrations", "")
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.poll_interval", "2s")
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.credits_collection", "credit_requests")
	v.SetDefault("firestore.reminders_collection", "reminders")
	v.SetDefault("firestore.notes_collection", "investigation_notes")
	v.SetDefault("firestore.roles_collection", "user_roles")
	v.SetDefault("redis.url", "")
	v.SetDefault("risk.medium_threshold", 35)
	v.SetDefault("risk.high_threshold", 65)
	v.SetDefault("risk.high_dollar_threshold", 2500)
	v.SetDefault("reminders.check_interval", "1m")
	v.SetDefault("reminders.default_remind_time", "08:00")
	v.SetDefault("ui.timezone", "America/Indiana/Indianapolis")
	v.SetDefault("ui.currency_symbol", "$")
	v.SetDefault("ui.page_size", 50)
	v.SetDefault("user.email", "")
	v.SetDefault("user.role", "read-only")
	v.SetDefault("authors.aliases", map[string]string{})

	v.SetConfigType("toml")
	v.SetConfigFile(configPath())

	v.SetEnvPrefix("CIC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads configuration from file and env. Env var overrides use prefix CIC_.
func Load() (Config, error) {
	v := newViper()

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Store.Backend != BackendSQLite && c.Store.Backend != BackendFirestore {
		return Config{}, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Risk.HighThreshold < c.Risk.MediumThreshold {
		return Config{}, fmt.Errorf("risk.high_threshold %d below risk.medium_threshold %d", c.Risk.HighThreshold, c.Risk.MediumThreshold)
	}
	return c, nil
}

// Save writes the non-secret preferences of cfg to the config file,
// creating the config directory if needed.
func Save(cfg Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("store.backend", cfg.Store.Backend)
	v.Set("store.poll_interval", cfg.Store.PollInterval.String())
	v.Set("firestore.project_id", cfg.Firestore.ProjectID)
	v.Set("risk.medium_threshold", cfg.Risk.MediumThreshold)
	v.Set("risk.high_threshold", cfg.Risk.HighThreshold)
	v.Set("risk.high_dollar_threshold", cfg.Risk.HighDollarThreshold)
	v.Set("reminders.check_interval", cfg.Reminders.CheckInterval.String())
	v.Set("reminders.default_remind_time", cfg.Reminders.DefaultRemindTime)
	v.Set("ui.timezone", cfg.UI.Timezone)
	v.Set("ui.currency_symbol", cfg.UI.CurrencySymbol)
	v.Set("ui.page_size", cfg.UI.PageSize)
	v.Set("user.email", cfg.User.Email)
	if len(cfg.Authors.Aliases) > 0 {
		v.Set("authors.aliases", cfg.Authors.Aliases)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
