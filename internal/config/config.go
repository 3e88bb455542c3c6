package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string        `yaml:"discord_token"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`
	Health       HealthConfig  `yaml:"health"`
	Automod      AutomodConfig `yaml:"automod"`
	Cache        CacheConfig   `yaml:"cache"`
	Embeds       EmbedColors   `yaml:"embed_colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type AutomodConfig struct {
	SpamThreshold       int    `yaml:"spam_threshold"`
	SpamWindowMs        int    `yaml:"spam_window_ms"`
	SpamMuteDuration    string `yaml:"spam_mute_duration"`
	DefaultMuteDuration string `yaml:"default_mute_duration"`
}

type CacheConfig struct {
	SettingsTTLMinutes int `yaml:"settings_ttl_minutes"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/aegis.db",
		LogLevel:     "info",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Automod: AutomodConfig{
			SpamThreshold:       5,
			SpamWindowMs:        3000,
			SpamMuteDuration:    "5m",
			DefaultMuteDuration: "1h",
		},
		Cache: CacheConfig{SettingsTTLMinutes: 5},
		Embeds: EmbedColors{
			Action:  0xF59E0B,
			Warning: 0xEF4444,
			Error:   0xF97316,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Automod.SpamThreshold = envInt("SPAM_THRESHOLD", cfg.Automod.SpamThreshold)
	cfg.Automod.SpamWindowMs = envInt("SPAM_WINDOW_MS", cfg.Automod.SpamWindowMs)
	cfg.Automod.SpamMuteDuration = envString("SPAM_MUTE_DURATION", cfg.Automod.SpamMuteDuration)
	cfg.Automod.DefaultMuteDuration = envString("DEFAULT_MUTE_DURATION", cfg.Automod.DefaultMuteDuration)
	cfg.Cache.SettingsTTLMinutes = envInt("SETTINGS_TTL_MINUTES", cfg.Cache.SettingsTTLMinutes)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
