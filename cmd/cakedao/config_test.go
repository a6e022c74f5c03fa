package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/axiomesh/cakedao/repo"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeDefaultConfig(t *testing.T) {
	out := &bytes.Buffer{}
	warnings := summarizeConfig(out, repo.DefaultConfig(t.TempDir()))

	assert.Equal(t, 0, warnings)
	assert.Contains(t, out.String(), "slots: 3")
	assert.Contains(t, out.String(), "quorum threshold: 50000000")
	assert.Contains(t, out.String(), "expiration period: 72h0m0s")
	assert.Contains(t, out.String(), "source: static")
	assert.Contains(t, out.String(), "accounts: 1, total power: 100000000")
}

func TestSummarizeConfigWarnings(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *repo.Config)
		warning string
	}{
		{
			name: "quorum above supply",
			modify: func(c *repo.Config) {
				c.Governance.QuorumThreshold = repo.DefaultTotalSupply + 1
			},
			warning: "every proposal will expire",
		},
		{
			name: "empty genesis",
			modify: func(c *repo.Config) {
				c.Ledger.Genesis = nil
			},
			warning: "proposals cannot be created",
		},
		{
			name: "genesis overflow",
			modify: func(c *repo.Config) {
				c.Ledger.Genesis["0x000000000000000000000000000000000000000a"] = math.MaxUint64
			},
			warning: "overflows uint64",
		},
		{
			name: "erc20 without dial url",
			modify: func(c *repo.Config) {
				c.Ledger.Source = repo.LedgerSourceERC20
				c.Ledger.TokenAddress = "0x00000000000000000000000000000000000cace0"
				c.DialUrl = ""
			},
			warning: "dial_url is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := repo.DefaultConfig(t.TempDir())
			tt.modify(c)

			out := &bytes.Buffer{}
			assert.Equal(t, 1, summarizeConfig(out, c))
			assert.Contains(t, out.String(), "warning: "+tt.warning)
		})
	}
}

func TestSummarizeERC20Config(t *testing.T) {
	c := repo.DefaultConfig(t.TempDir())
	c.Ledger.Source = repo.LedgerSourceERC20
	c.Ledger.TokenAddress = "0x00000000000000000000000000000000000cace0"

	out := &bytes.Buffer{}
	assert.Equal(t, 0, summarizeConfig(out, c))
	assert.Contains(t, out.String(), "token: 0x00000000000000000000000000000000000cace0")
	assert.Contains(t, out.String(), "dial url: ws://localhost:9991")
	assert.NotContains(t, out.String(), "total power")
}
