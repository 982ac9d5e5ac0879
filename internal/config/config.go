package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ClassifierConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Host     string        `mapstructure:"host"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"` // "10s"
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // text|json
}

type Config struct {
	DBPath     string           `mapstructure:"db_path"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

func Default() Config {
	return Config{
		DBPath: defaultDBPath(),
		Classifier: ClassifierConfig{
			Endpoint: "https://ekman-emotion-analysis.p.rapidapi.com/ekman-emotion",
			Language: "en",
			Timeout:  10 * time.Second,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "diary.db"
	}
	return filepath.Join(home, ".local", "share", "diary", "diary.db")
}

// DefaultPath is ~/.config/diary/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "diary", "config.yaml"), nil
}

// Load reads the YAML config at path (DefaultPath when empty) and applies
// DIARY_* environment overrides, e.g. DIARY_CLASSIFIER_API_KEY. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix("diary")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("classifier.endpoint", cfg.Classifier.Endpoint)
	v.SetDefault("classifier.api_key", cfg.Classifier.APIKey)
	v.SetDefault("classifier.host", cfg.Classifier.Host)
	v.SetDefault("classifier.language", cfg.Classifier.Language)
	v.SetDefault("classifier.timeout", cfg.Classifier.Timeout)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config read: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config unmarshal: %w", err)
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Classifier.Timeout <= 0 {
		return cfg, fmt.Errorf("config: classifier.timeout must be positive, got %s", cfg.Classifier.Timeout)
	}
	return cfg, nil
}
