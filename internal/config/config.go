// Package config loads process configuration for cmd/gateway via viper,
// keeping the matching core itself free of any config-library dependency.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EngineConfig is the typed configuration handed to the gateway's
// constructors; the engine and writer never touch viper directly.
type EngineConfig struct {
	ListenAddr     string
	ListenPort     int
	MetricsAddr    string
	ChunkSize      int
	ClockInterval  uint64
	WorkerPoolSize int
}

// Load reads configuration from (in increasing priority) defaults,
// a fenrir.yaml/json/toml file on the current path, and FENRIR_*
// environment variables.
func Load() (EngineConfig, error) {
	v := viper.New()
	v.SetConfigName("fenrir")
	v.AddConfigPath(".")
	v.SetEnvPrefix("FENRIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen.addr", "0.0.0.0")
	v.SetDefault("listen.port", 9443)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("chunk.size", 10000)
	v.SetDefault("clock.interval", 10000)
	v.SetDefault("worker.pool_size", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return EngineConfig{}, err
		}
	}

	return EngineConfig{
		ListenAddr:     v.GetString("listen.addr"),
		ListenPort:     v.GetInt("listen.port"),
		MetricsAddr:    v.GetString("metrics.addr"),
		ChunkSize:      v.GetInt("chunk.size"),
		ClockInterval:  uint64(v.GetInt64("clock.interval")),
		WorkerPoolSize: v.GetInt("worker.pool_size"),
	}, nil
}
