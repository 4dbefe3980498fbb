package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/kvd/internal/store"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultNumSets, cfg.NumSets)
	assert.Equal(t, DefaultMaxElemsPerSet, cfg.MaxElemsPerSet)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, store.KindBolt, cfg.Store)
	assert.Equal(t, "kvd.bbolt", filepath.Base(cfg.DB))
	assert.Empty(t, cfg.AdminAddr)
	assert.Zero(t, cfg.AcceptRate)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		EnvAddr:           ":9090",
		EnvNumSets:        "4",
		EnvMaxElemsPerSet: " 2 ",
		EnvPoolSize:       "16",
		EnvStore:          "SQLite",
		EnvAdminAddr:      "127.0.0.1:9091",
		EnvAcceptRate:     "250.5",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 4, cfg.NumSets)
	assert.Equal(t, 2, cfg.MaxElemsPerSet)
	assert.Equal(t, 16, cfg.PoolSize)
	assert.Equal(t, store.KindSQLite, cfg.Store)
	assert.Equal(t, "kvd.db", filepath.Base(cfg.DB))
	assert.Equal(t, "127.0.0.1:9091", cfg.AdminAddr)
	assert.InDelta(t, 250.5, cfg.AcceptRate, 1e-9)

	sc := cfg.Server()
	assert.Equal(t, 4, sc.NumSets)
	assert.Equal(t, 16, sc.PoolSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"not a number":  {EnvNumSets: "many"},
		"zero sets":     {EnvNumSets: "0"},
		"negative pool": {EnvPoolSize: "-1"},
		"zero per set":  {EnvMaxElemsPerSet: "0"},
		"unknown store": {EnvStore: "redis"},
		"bad rate":      {EnvAcceptRate: "fast"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromProcessEnvironment(t *testing.T) {
	t.Setenv(EnvStore, "memory")
	t.Setenv(EnvDB, "/tmp/ignored")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, store.KindMemory, cfg.Store)
	assert.Equal(t, "/tmp/ignored", cfg.DB)
}
