package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "a2f-verifier"
	defaultAppEnv         = "development"
	defaultPort           = "3000"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultProviderName   = "test_provider"
	defaultAlgodAddress   = "http://127.0.0.1:4001"
	defaultIndexerAddress = "http://127.0.0.1:8980"
	defaultStaticDir      = "public"
	defaultPollInterval   = 4 * time.Second
	defaultPollMaxCycles  = 150
	defaultLedgerRPS      = 20
	defaultAttempts       = 30

	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// DefaultAlgodToken is the token of a local sandbox node.
var DefaultAlgodToken = strings.Repeat("a", 64)

// ErrMissingProvider is returned when PROVIDER_MNEMONIC is not set.
var ErrMissingProvider = errors.New("missing provider account (hint: set the PROVIDER_MNEMONIC environment variable)")

// Ledger locates the algod and indexer endpoints.
type Ledger struct {
	AlgodAddress   string
	AlgodToken     string
	IndexerAddress string
	IndexerToken   string
	// RequestsPerSecond caps ledger reads shared by all pollers. Zero disables the cap.
	RequestsPerSecond float64
}

// Poll tunes correlation waits.
type Poll struct {
	Interval  time.Duration
	MaxCycles int
}

// Config captures verifier runtime configuration loaded from environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	ShutdownPeriod   time.Duration
	ProviderMnemonic string
	ProviderName     string
	StaticDir        string
	// AttemptsPerMinute caps control channels opened per client. Zero disables the cap.
	AttemptsPerMinute int
	Ledger            Ledger
	Poll              Poll
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		ProviderMnemonic: strings.TrimSpace(os.Getenv("PROVIDER_MNEMONIC")),
		ProviderName:     getEnv("PROVIDER_NAME", defaultProviderName),
		StaticDir:        getEnv("STATIC_DIR", defaultStaticDir),
		Ledger:           ledgerFromEnv(Ledger{}),
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	var err error
	if cfg.Poll, err = pollFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.Ledger.RequestsPerSecond, err = getFloat("LEDGER_RPS", defaultLedgerRPS); err != nil {
		return Config{}, err
	}
	if cfg.AttemptsPerMinute, err = getInt("ATTEMPTS_PER_MINUTE", defaultAttempts); err != nil {
		return Config{}, err
	}

	if cfg.ProviderMnemonic == "" {
		return Config{}, ErrMissingProvider
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// ledgerFromEnv overlays ledger endpoint variables on base, then fills defaults.
func ledgerFromEnv(base Ledger) Ledger {
	base.AlgodAddress = getEnv("ALGOD_ADDRESS", orDefault(base.AlgodAddress, defaultAlgodAddress))
	base.AlgodToken = getEnv("ALGOD_TOKEN", orDefault(base.AlgodToken, DefaultAlgodToken))
	base.IndexerAddress = getEnv("INDEXER_ADDRESS", orDefault(base.IndexerAddress, defaultIndexerAddress))
	base.IndexerToken = getEnv("INDEXER_TOKEN", base.IndexerToken)
	return base
}

func pollFromEnv() (Poll, error) {
	p := Poll{Interval: defaultPollInterval, MaxCycles: defaultPollMaxCycles}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Poll{}, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
		}
		p.Interval = d
	}
	n, err := getInt("POLL_MAX_CYCLES", defaultPollMaxCycles)
	if err != nil {
		return Poll{}, err
	}
	p.MaxCycles = n
	return p, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
