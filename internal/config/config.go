// Package config loads parallaxd node settings from flags, environment
// (PARALLAX_*) and an optional <home>/config/parallaxd.toml via viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "PARALLAX"
	configName = "parallaxd"
)

// Keys shared by flags, env and the config file.
const (
	KeyHome          = "home"
	KeyABCIAddr      = "abci-addr"
	KeyTransport     = "transport"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
	KeyRedisAddr     = "redis-addr"
	KeyRedisPassword = "redis-password"
	KeyRedisDB       = "redis-db"
	KeyEventChannel  = "event-channel"
	KeyMetricsAddr   = "metrics-addr"
)

type Config struct {
	Home      string
	ABCIAddr  string
	Transport string // socket|grpc

	LogLevel  string
	LogFormat string // text|json

	// Event publishing is disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventChannel  string

	// Metrics are not served when MetricsAddr is empty.
	MetricsAddr string
}

func DefaultConfig() Config {
	return Config{
		Home:         ".parallax",
		ABCIAddr:     "tcp://127.0.0.1:26658",
		Transport:    "socket",
		LogLevel:     "info",
		LogFormat:    "text",
		EventChannel: "parallax:events",
	}
}

// SetDefaults registers the defaults on v and enables PARALLAX_* env lookup.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault(KeyHome, d.Home)
	v.SetDefault(KeyABCIAddr, d.ABCIAddr)
	v.SetDefault(KeyTransport, d.Transport)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyRedisAddr, d.RedisAddr)
	v.SetDefault(KeyRedisPassword, d.RedisPassword)
	v.SetDefault(KeyRedisDB, d.RedisDB)
	v.SetDefault(KeyEventChannel, d.EventChannel)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the optional config file under <home>/config and returns the
// validated settings.
func Load(v *viper.Viper) (Config, error) {
	home := v.GetString(KeyHome)
	v.SetConfigName(configName)
	v.SetConfigType("toml")
	v.AddConfigPath(filepath.Join(home, "config"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("loaded config file")
	}

	cfg := Config{
		Home:          v.GetString(KeyHome),
		ABCIAddr:      v.GetString(KeyABCIAddr),
		Transport:     v.GetString(KeyTransport),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		RedisAddr:     v.GetString(KeyRedisAddr),
		RedisPassword: v.GetString(KeyRedisPassword),
		RedisDB:       v.GetInt(KeyRedisDB),
		EventChannel:  v.GetString(KeyEventChannel),
		MetricsAddr:   v.GetString(KeyMetricsAddr),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Home) == "" {
		return fmt.Errorf("home must be set")
	}
	if c.ABCIAddr == "" {
		return fmt.Errorf("abci-addr must be set")
	}
	switch c.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("unknown transport %q (want socket|grpc)", c.Transport)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log-format %q (want text|json)", c.LogFormat)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis-db must be >= 0")
	}
	if c.RedisAddr != "" && c.EventChannel == "" {
		return fmt.Errorf("event-channel must be set when redis-addr is set")
	}
	return nil
}

// DataDir is where the state database lives.
func (c Config) DataDir() string {
	return filepath.Join(c.Home, "data")
}

// Logger builds the node logger from the configured level and format.
func (c Config) Logger() (*log.Logger, error) {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	l := log.New()
	l.SetLevel(lvl)
	if c.LogFormat == "json" {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
