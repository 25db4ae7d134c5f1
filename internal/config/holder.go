package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	holderConfigFile = ".a2f.toml"
	holderStateFile  = ".a2f"
)

// Holder is the configuration of the holder CLI. Values come from an
// optional TOML file and are overridden by environment variables.
type Holder struct {
	StatePath  string
	LogLevel   string
	Passphrase string
	Interval   time.Duration
	Ledger     Ledger
}

// holderFile mirrors the TOML layout.
type holderFile struct {
	StatePath    string `toml:"state_path"`
	LogLevel     string `toml:"log_level"`
	PollInterval string `toml:"poll_interval"`
	Algod        struct {
		Address string `toml:"address"`
		Token   string `toml:"token"`
	} `toml:"algod"`
	Indexer struct {
		Address string `toml:"address"`
		Token   string `toml:"token"`
	} `toml:"indexer"`
	LedgerRPS float64 `toml:"ledger_rps"`
}

// DefaultHolderConfigPath is ~/.a2f.toml, overridable with A2F_CONFIG.
func DefaultHolderConfigPath() string {
	if p := os.Getenv("A2F_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return holderConfigFile
	}
	return filepath.Join(home, holderConfigFile)
}

// LoadHolder reads the TOML file at path (a missing file is not an error)
// and applies environment overrides.
func LoadHolder(path string) (Holder, error) {
	var f holderFile
	if path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Holder{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	h := Holder{
		StatePath:  getEnv("A2F_STATE", f.StatePath),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", orDefault(f.LogLevel, "warn"))),
		Passphrase: os.Getenv("A2F_PASSPHRASE"),
		Interval:   defaultPollInterval,
	}
	if h.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Holder{}, fmt.Errorf("locate home directory: %w", err)
		}
		h.StatePath = filepath.Join(home, holderStateFile)
	}

	h.Ledger = ledgerFromEnv(Ledger{
		AlgodAddress:      f.Algod.Address,
		AlgodToken:        f.Algod.Token,
		IndexerAddress:    f.Indexer.Address,
		IndexerToken:      f.Indexer.Token,
		RequestsPerSecond: f.LedgerRPS,
	})
	rps, err := getFloat("LEDGER_RPS", h.Ledger.RequestsPerSecond)
	if err != nil {
		return Holder{}, err
	}
	h.Ledger.RequestsPerSecond = rps

	interval := getEnv("POLL_INTERVAL", f.PollInterval)
	if interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return Holder{}, fmt.Errorf("invalid poll interval: %w", err)
		}
		h.Interval = d
	}
	return h, nil
}
