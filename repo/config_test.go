package repo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig("/tmp/cakedao")

	assert.Nil(t, c.Validate())
	assert.Equal(t, uint64(50_000_000), c.Governance.QuorumThreshold)
	assert.Equal(t, 72*time.Hour, c.Governance.ExpirationPeriod)
	assert.Equal(t, DefaultTotalSupply, c.Ledger.Genesis[GenesisAccountAddr])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero quorum", func(c *Config) { c.Governance.QuorumThreshold = 0 }},
		{"zero expiration", func(c *Config) { c.Governance.ExpirationPeriod = 0 }},
		{"unknown source", func(c *Config) { c.Ledger.Source = "oracle" }},
		{"bad genesis address", func(c *Config) { c.Ledger.Genesis["alice"] = 1 }},
		{"bad token address", func(c *Config) {
			c.Ledger.Source = LedgerSourceERC20
			c.Ledger.TokenAddress = "0x12"
		}},
		{"zero retry limit", func(c *Config) {
			c.Ledger.Source = LedgerSourceERC20
			c.Ledger.TokenAddress = "0x00000000000000000000000000000000000000aa"
			c.Ledger.RetryLimit = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig(t.TempDir())
			tt.modify(c)
			assert.NotNil(t, c.Validate())
		})
	}
}

func TestMarshalConfig(t *testing.T) {
	str, err := MarshalConfig(DefaultConfig("/tmp/cakedao"))
	require.Nil(t, err)

	assert.Contains(t, str, "quorum_threshold = 50000000")
	assert.Contains(t, str, "[ledger.genesis]")
	assert.NotContains(t, str, "RepoRoot")
}

func TestLoadGeneratesDefault(t *testing.T) {
	root := t.TempDir()

	r, err := Load(root)
	require.Nil(t, err)

	assert.True(t, Exist(filepath.Join(root, cfgFileName)))
	assert.Equal(t, root, r.Config.RepoRoot)
	assert.Equal(t, filepath.Join(root, StorageDirName), r.StoragePath())
	assert.Equal(t, DefaultConfig(root), r.Config)
}

func TestLoadReadsFile(t *testing.T) {
	root := t.TempDir()

	c := DefaultConfig(root)
	c.Governance.QuorumThreshold = 10
	c.Governance.ExpirationPeriod = time.Hour
	c.Ledger.Genesis = map[string]uint64{
		"0x00000000000000000000000000000000000000aa": 7,
	}
	require.Nil(t, (&Repo{Config: c}).Flush())

	r, err := Load(root)
	require.Nil(t, err)

	assert.Equal(t, uint64(10), r.Config.Governance.QuorumThreshold)
	assert.Equal(t, time.Hour, r.Config.Governance.ExpirationPeriod)
	assert.Equal(t, map[string]uint64{"0x00000000000000000000000000000000000000aa": 7}, r.Config.Ledger.Genesis)
}

func TestLoadWithEnv(t *testing.T) {
	root := t.TempDir()
	require.Nil(t, (&Repo{Config: DefaultConfig(root)}).Flush())

	t.Setenv("CAKEDAO_GOVERNANCE_QUORUM_THRESHOLD", "123")
	t.Setenv("CAKEDAO_LOG_LEVEL", "debug")

	r, err := Load(root)
	require.Nil(t, err)

	assert.Equal(t, uint64(123), r.Config.Governance.QuorumThreshold)
	assert.Equal(t, "debug", r.Config.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	root := t.TempDir()
	c := DefaultConfig(root)
	c.Ledger.Source = "unknown"
	require.Nil(t, (&Repo{Config: c}).Flush())

	_, err := Load(root)
	assert.NotNil(t, err)
}

func TestLoadRepoRootFromEnv(t *testing.T) {
	p, err := LoadRepoRootFromEnv("/explicit")
	require.Nil(t, err)
	assert.Equal(t, "/explicit", p)

	t.Setenv(rootPathEnvVar, "/from/env")
	p, err = LoadRepoRootFromEnv("")
	require.Nil(t, err)
	assert.Equal(t, "/from/env", p)
}
