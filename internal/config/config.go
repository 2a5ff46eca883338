// Package config loads agent configuration from environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, loaded from environment
// variables.
type Config struct {
	// NodeName identifies this node in gossip and in bind calls;
	// defaults to the OS hostname when unset.
	NodeName string `env:"NODE_NAME"`

	// GossipAddr is the local Serf agent RPC address.
	GossipAddr string `env:"GOSSIP_ADDR" envDefault:"127.0.0.1:7373"`

	// CachePath is the SQLite file backing the desired-state cache.
	CachePath string `env:"CACHE_PATH" envDefault:"/data/desired.db"`

	// MetricsPort is the port the Prometheus scrape endpoint listens on.
	MetricsPort int `env:"METRICS_PORT" envDefault:"8000"`

	// LogLevel controls the zap logger's verbosity.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// KubeconfigPath is used to build an out-of-cluster clientset when
	// InCluster is false. When empty, clientcmd.BuildConfigFromFlags is
	// given no path and tries the in-cluster config instead.
	KubeconfigPath string `env:"KUBECONFIG"`

	// InCluster selects in-cluster client-go config over a kubeconfig
	// file; defaults to true when KUBERNETES_SERVICE_HOST is set, the
	// same signal the original Python operator checked at startup.
	InCluster bool `env:"IN_CLUSTER"`
}

// Load reads configuration from environment variables, applying the
// same hostname and in-cluster detection fallbacks the operator always
// applied at startup.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if cfg.NodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("config: resolve node name: %w", err)
		}
		cfg.NodeName = hostname
	}

	if os.Getenv("IN_CLUSTER") == "" {
		cfg.InCluster = os.Getenv("KUBERNETES_SERVICE_HOST") != ""
	}

	return cfg, nil
}

// MetricsAddr returns the address the metrics HTTP server should listen
// on.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}
