package config

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, home string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyHome, home)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(newViper(t, home))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Home = home
	require.Equal(t, want, cfg)
	require.Equal(t, filepath.Join(home, "data"), cfg.DataDir())
}

func TestLoad_ConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0o755))
	toml := []byte(`
abci-addr = "tcp://0.0.0.0:36658"
log-format = "json"
redis-addr = "localhost:6379"
redis-db = 2
metrics-addr = ":9102"
`)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config", "parallaxd.toml"), toml, 0o644))

	cfg, err := Load(newViper(t, home))
	require.NoError(t, err)
	require.Equal(t, "tcp://0.0.0.0:36658", cfg.ABCIAddr)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
	require.Equal(t, 2, cfg.RedisDB)
	require.Equal(t, ":9102", cfg.MetricsAddr)
	require.Equal(t, "socket", cfg.Transport)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PARALLAX_LOG_LEVEL", "debug")
	t.Setenv("PARALLAX_TRANSPORT", "grpc")

	cfg, err := Load(newViper(t, t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "grpc", cfg.Transport)
}

func TestLoad_BadConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "config", "parallaxd.toml"), []byte("abci-addr = "), 0o644))

	_, err := Load(newViper(t, home))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty home", func(c *Config) { c.Home = " " }, "home must be set"},
		{"empty abci addr", func(c *Config) { c.ABCIAddr = "" }, "abci-addr"},
		{"bad transport", func(c *Config) { c.Transport = "http" }, "unknown transport"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log-level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "unknown log-format"},
		{"negative redis db", func(c *Config) { c.RedisDB = -1 }, "redis-db"},
		{"redis without channel", func(c *Config) { c.RedisAddr = "localhost:6379"; c.EventChannel = "" }, "event-channel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(&c)
			require.ErrorContains(t, c.Validate(), tc.want)
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestLogger(t *testing.T) {
	c := DefaultConfig()
	c.LogLevel = "warn"
	c.LogFormat = "json"
	l, err := c.Logger()
	require.NoError(t, err)
	require.Equal(t, log.WarnLevel, l.GetLevel())
	require.IsType(t, &log.JSONFormatter{}, l.Formatter)
}
