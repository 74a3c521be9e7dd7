// Package config loads runtime configuration for the simrun CLI and admin
// server.
//
// Precedence, highest first: runtime overrides, environment variables
// (SIMRUN_ prefix), an optional simrun.yaml in the working directory, then
// built-in defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Launcher is the default launcher backend when a manifest does not
	// specify one.
	Launcher string `mapstructure:"launcher"`

	Poll    PollConfig    `mapstructure:"poll"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PollConfig tunes job manager polling.
type PollConfig struct {
	// LocalInterval is the status poll cadence for local launchers.
	LocalInterval time.Duration `mapstructure:"local_interval"`

	// WLMInterval is the status poll cadence for workload managers.
	WLMInterval time.Duration `mapstructure:"wlm_interval"`

	// WLMQueryInterval is the minimum spacing between scheduler queries
	// (sacct, qstat).
	WLMQueryInterval time.Duration `mapstructure:"wlm_query_interval"`
}

// ServerConfig tunes the admin HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig tunes the global logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

var (
	configMu  sync.Mutex
	appConfig *Config
)

// Load resolves configuration and caches it for GetConfig.
//
// Optional overrides are merged last and win over environment variables and
// file values. Calling Load again replaces the cached config.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("simrun")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SIMRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindShortEnvNames(v)

	// Overrides go through Set so they outrank env vars and file values.
	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	decodeDurations := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeDurations); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded config, or nil before Load.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("launcher", "local")

	v.SetDefault("poll.local_interval", time.Second)
	v.SetDefault("poll.wlm_interval", 10*time.Second)
	v.SetDefault("poll.wlm_query_interval", time.Second)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "CLI")
}

// flatten converts nested override maps into dotted viper keys.
func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// bindShortEnvNames maps the common operator-facing env vars that do not
// follow the nested key layout.
func bindShortEnvNames(v *viper.Viper) {
	_ = v.BindEnv("server.port", "SIMRUN_SERVER_PORT", "SIMRUN_PORT")
	_ = v.BindEnv("server.host", "SIMRUN_SERVER_HOST", "SIMRUN_HOST")
	_ = v.BindEnv("logging.level", "SIMRUN_LOGGING_LEVEL", "SIMRUN_LOG_LEVEL")
	_ = v.BindEnv("launcher", "SIMRUN_LAUNCHER")
}
