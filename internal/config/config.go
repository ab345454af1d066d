// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the process configuration from environment
// variables (optionally backed by a .env file for local development)
// into a Config struct that Load populates at startup and validates
// before returning it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-variable-driven setting named in
// SPEC_FULL.md §6.
type Config struct {
	HotStorePath string

	TieringEnabled      bool
	TieringMaxAgeMs     int64
	TieringInterval     time.Duration
	TieringBatchSize    int
	TieringUploadRPS    float64

	ColdEndpoint  string
	ColdBucket    string
	ColdAccessKey string
	ColdSecretKey string
	ColdRegion    string
	ColdPathStyle bool

	RPCBindAddr  string
	HTTPBindAddr string

	BusURL     string
	BusSubject string

	LogLevel      string
	LogTimestamps bool

	ServiceUser  string
	ServiceGroup string
}

const (
	envHotStorePath = "HISTORIAN_HOT_STORE_PATH"

	envTieringEnabled   = "HISTORIAN_TIERING_ENABLED"
	envTieringMaxAgeMs  = "HISTORIAN_TIERING_MAX_AGE_MS"
	envTieringInterval  = "HISTORIAN_TIERING_INTERVAL"
	envTieringBatchSize = "HISTORIAN_TIERING_BATCH_SIZE"
	envTieringUploadRPS = "HISTORIAN_TIERING_UPLOAD_RPS"

	envColdEndpoint  = "HISTORIAN_COLD_ENDPOINT"
	envColdBucket    = "HISTORIAN_COLD_BUCKET"
	envColdAccessKey = "HISTORIAN_COLD_ACCESS_KEY"
	envColdSecretKey = "HISTORIAN_COLD_SECRET_KEY"
	envColdRegion    = "HISTORIAN_COLD_REGION"
	envColdPathStyle = "HISTORIAN_COLD_PATH_STYLE"

	envRPCBindAddr  = "HISTORIAN_RPC_BIND_ADDR"
	envHTTPBindAddr = "HISTORIAN_HTTP_BIND_ADDR"

	envBusURL     = "HISTORIAN_BUS_URL"
	envBusSubject = "HISTORIAN_BUS_SUBJECT"

	envLogLevel      = "HISTORIAN_LOG_LEVEL"
	envLogTimestamps = "HISTORIAN_LOG_TIMESTAMPS"

	envServiceUser  = "HISTORIAN_SERVICE_USER"
	envServiceGroup = "HISTORIAN_SERVICE_GROUP"
)

// Load reads a .env file if present (ignored if absent) and then builds a
// Config from the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HotStorePath: getString(envHotStorePath, "./data/hot"),

		TieringEnabled:   getBool(envTieringEnabled, false),
		TieringMaxAgeMs:  getInt64(envTieringMaxAgeMs, 7*24*60*60*1000),
		TieringInterval:  getDuration(envTieringInterval, 60*time.Second),
		TieringBatchSize: getInt(envTieringBatchSize, 100),
		TieringUploadRPS: getFloat(envTieringUploadRPS, 50),

		ColdEndpoint:  getString(envColdEndpoint, ""),
		ColdBucket:    getString(envColdBucket, ""),
		ColdAccessKey: getString(envColdAccessKey, ""),
		ColdSecretKey: getString(envColdSecretKey, ""),
		ColdRegion:    getString(envColdRegion, "us-east-1"),
		ColdPathStyle: getBool(envColdPathStyle, true),

		RPCBindAddr:  getString(envRPCBindAddr, ":9090"),
		HTTPBindAddr: getString(envHTTPBindAddr, ":8080"),

		BusURL:     getString(envBusURL, "nats://127.0.0.1:4222"),
		BusSubject: getString(envBusSubject, "historian.samples"),

		LogLevel:      getString(envLogLevel, "info"),
		LogTimestamps: getBool(envLogTimestamps, false),

		ServiceUser:  getString(envServiceUser, ""),
		ServiceGroup: getString(envServiceGroup, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ColdCredentialsComplete reports whether every credential the cold store
// needs is present.
func (c *Config) ColdCredentialsComplete() bool {
	return c.ColdEndpoint != "" && c.ColdBucket != "" && c.ColdAccessKey != "" && c.ColdSecretKey != ""
}

// TieringShouldStart implements the §6 rule: "the tiering subsystem starts
// only if the full cold-store credential set is present and the flag is true."
func (c *Config) TieringShouldStart() bool {
	return c.TieringEnabled && c.ColdCredentialsComplete()
}

func (c *Config) Validate() error {
	if c.HotStorePath == "" {
		return fmt.Errorf("config: %s must not be empty", envHotStorePath)
	}
	if c.TieringMaxAgeMs < 0 {
		return fmt.Errorf("config: %s must be >= 0", envTieringMaxAgeMs)
	}
	if c.TieringBatchSize <= 0 {
		return fmt.Errorf("config: %s must be > 0", envTieringBatchSize)
	}
	if c.TieringInterval <= 0 {
		return fmt.Errorf("config: %s must be > 0", envTieringInterval)
	}
	if c.TieringEnabled && !c.ColdCredentialsComplete() {
		// Not a hard error: SPEC_FULL.md §6 says tiering simply does not
		// start in this case, it is not a fatal misconfiguration.
		return nil
	}
	return nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
