// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "EMBERHTTPD_"

// config is this command's environment-backed configuration, parsed with
// caarlos0/env under a dedicated prefix so it can share an environment
// with other EMBERHTTPD_-prefixed tooling without collisions.
type config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	// UnixSocket, if set, takes priority over Host/Port and binds a
	// filesystem-socket endpoint instead.
	UnixSocket string `env:"UNIX_SOCKET"`

	DispatchTimeout string `env:"DISPATCH_TIMEOUT" envDefault:"15s"`

	RateLimitCapacity   int64 `env:"RATE_LIMIT_CAPACITY" envDefault:"100"`
	RateLimitRefillRate int64 `env:"RATE_LIMIT_REFILL_RATE" envDefault:"50"`

	BreakerFailureThreshold int    `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerOpenDuration     string `env:"BREAKER_OPEN_DURATION" envDefault:"10s"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"emberhttp"`

	StaticDir string `env:"STATIC_DIR"`
}

// loadConfig loads .env, if present, then parses the process environment
// into a config. noEnvFile reports
// whether a .env file was absent, for the caller to log as a warning
// rather than treat as fatal.
func loadConfig() (cfg config, noEnvFile bool, err error) {
	noEnvFile = godotenv.Load() != nil
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return config{}, noEnvFile, err
	}
	return cfg, noEnvFile, nil
}
