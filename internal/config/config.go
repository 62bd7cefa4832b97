package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Trainer   TrainerConfig   `yaml:"trainer"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// TrainerConfig configures the terminal trainer. It shares the file format
// with the server so one config.yaml can describe a whole deployment.
type TrainerConfig struct {
	APIURL           string        `yaml:"api_url"`
	APIKey           string        `yaml:"api_key"`
	CountdownSeconds int           `yaml:"countdown_seconds"`
	AnnounceEvery    int           `yaml:"announce_every"`
	InstructionDelay time.Duration `yaml:"instruction_delay"`
	AutoConfirmAfter time.Duration `yaml:"auto_confirm_after"`
	Mute             bool          `yaml:"mute"`
	SpeechCommand    string        `yaml:"speech_command"`
	PlayerCommand    string        `yaml:"player_command"`
	SpoolPath        string        `yaml:"spool_path"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix HANGTIME_ and underscore-separated paths:
//
//	HANGTIME_SERVER_HOST, HANGTIME_SERVER_PORT,
//	HANGTIME_DB_HOST, HANGTIME_DB_PORT, HANGTIME_DB_NAME,
//	HANGTIME_DB_USER, HANGTIME_DB_PASSWORD, HANGTIME_DB_SSLMODE,
//	HANGTIME_AUTH_API_KEY, HANGTIME_TAILSCALE_ENABLED
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadTrainer returns trainer settings with defaults applied. The file is
// optional: an empty path, or a path that does not exist, yields defaults.
// Env overrides: HANGTIME_API_URL, HANGTIME_API_KEY, HANGTIME_SPOOL_PATH,
// HANGTIME_MUTE.
func LoadTrainer(path string) (*TrainerConfig, error) {
	cfg := &Config{Trainer: defaultTrainer()}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyTrainerEnv(&cfg.Trainer)

	if err := cfg.Trainer.validate(); err != nil {
		return nil, fmt.Errorf("trainer config validation: %w", err)
	}
	return &cfg.Trainer, nil
}

func defaultTrainer() TrainerConfig {
	t := TrainerConfig{
		CountdownSeconds: 10,
		AnnounceEvery:    30,
		InstructionDelay: 2 * time.Second,
	}
	if dir, err := os.UserCacheDir(); err == nil {
		t.SpoolPath = filepath.Join(dir, "hangtime", "spool.db")
	}
	return t
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HANGTIME_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HANGTIME_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HANGTIME_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HANGTIME_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HANGTIME_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HANGTIME_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HANGTIME_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HANGTIME_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("HANGTIME_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("HANGTIME_TAILSCALE_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = on
		}
	}
	applyTrainerEnv(&cfg.Trainer)
}

func applyTrainerEnv(t *TrainerConfig) {
	if v := os.Getenv("HANGTIME_API_URL"); v != "" {
		t.APIURL = v
	}
	if v := os.Getenv("HANGTIME_API_KEY"); v != "" {
		t.APIKey = v
	}
	if v := os.Getenv("HANGTIME_SPOOL_PATH"); v != "" {
		t.SpoolPath = v
	}
	if v := os.Getenv("HANGTIME_MUTE"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			t.Mute = on
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}

func (t *TrainerConfig) validate() error {
	if t.CountdownSeconds < 0 {
		return fmt.Errorf("trainer.countdown_seconds must not be negative")
	}
	if t.AnnounceEvery < 0 {
		return fmt.Errorf("trainer.announce_every must not be negative")
	}
	if t.InstructionDelay < 0 || t.AutoConfirmAfter < 0 {
		return fmt.Errorf("trainer delays must not be negative")
	}
	return nil
}
