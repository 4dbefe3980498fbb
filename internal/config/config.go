package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/leonardcser/kvd/internal/server"
	"github.com/leonardcser/kvd/internal/store"
)

// Environment variables read by Load.
const (
	EnvAddr           = "KVD_ADDR"
	EnvNumSets        = "KVD_NUM_SETS"
	EnvMaxElemsPerSet = "KVD_MAX_ELEMS_PER_SET"
	EnvPoolSize       = "KVD_POOL_SIZE"
	EnvStore          = "KVD_STORE"
	EnvDB             = "KVD_DB"
	EnvAdminAddr      = "KVD_ADMIN_ADDR"
	EnvAcceptRate     = "KVD_ACCEPT_RATE"
)

const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultNumSets        = 100
	DefaultMaxElemsPerSet = 10
	DefaultPoolSize       = 8
)

// Config is the complete runtime configuration of kvd.
type Config struct {
	Addr           string
	NumSets        int
	MaxElemsPerSet int
	PoolSize       int
	AcceptRate     float64

	Store store.Kind
	DB    string

	// AdminAddr enables the HTTP diagnostics surface when non-empty.
	AdminAddr string
}

// Load reads the configuration from the environment, applying defaults for
// unset variables.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:      defaultString(getenv(EnvAddr), DefaultAddr),
		Store:     store.Kind(strings.ToLower(defaultString(getenv(EnvStore), string(store.KindBolt)))),
		AdminAddr: getenv(EnvAdminAddr),
	}

	var err error
	if cfg.NumSets, err = intVar(getenv, EnvNumSets, DefaultNumSets); err != nil {
		return Config{}, err
	}
	if cfg.MaxElemsPerSet, err = intVar(getenv, EnvMaxElemsPerSet, DefaultMaxElemsPerSet); err != nil {
		return Config{}, err
	}
	if cfg.PoolSize, err = intVar(getenv, EnvPoolSize, DefaultPoolSize); err != nil {
		return Config{}, err
	}
	if v := getenv(EnvAcceptRate); v != "" {
		if cfg.AcceptRate, err = cast.ToFloat64E(v); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", EnvAcceptRate, err)
		}
	}
	cfg.DB = defaultString(getenv(EnvDB), defaultDBPath(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.NumSets < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", EnvNumSets, c.NumSets)
	}
	if c.MaxElemsPerSet < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", EnvMaxElemsPerSet, c.MaxElemsPerSet)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", EnvPoolSize, c.PoolSize)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("config: %s must not be negative", EnvAcceptRate)
	}
	switch c.Store {
	case store.KindBolt, store.KindSQLite, store.KindMemory:
	default:
		return fmt.Errorf("config: %s: unknown store %q", EnvStore, c.Store)
	}
	return nil
}

// Server returns the server shape described by c.
func (c Config) Server() server.Config {
	return server.Config{
		Addr:           c.Addr,
		NumSets:        c.NumSets,
		MaxElemsPerSet: c.MaxElemsPerSet,
		PoolSize:       c.PoolSize,
		AcceptRate:     c.AcceptRate,
	}
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return n, nil
}

func defaultDBPath(kind store.Kind) string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	name := "kvd.bbolt"
	if kind == store.KindSQLite {
		name = "kvd.db"
	}
	return filepath.Join(home, ".cache", "kvd", name)
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
