package repo

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	LedgerSourceStatic = "static"
	LedgerSourceERC20  = "erc20"

	// DefaultTotalSupply is the CAKE genesis supply, 6 decimals.
	DefaultTotalSupply uint64 = 100_000_000
)

type Config struct {
	RepoRoot   string     `mapstructure:"-" toml:"-"`
	DialUrl    string     `mapstructure:"dial_url" toml:"dial_url"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Governance Governance `mapstructure:"governance" toml:"governance"`
	Ledger     Ledger     `mapstructure:"ledger" toml:"ledger"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Governance struct {
	// votes one side needs to resolve a proposal, half of the supply by default
	QuorumThreshold  uint64        `mapstructure:"quorum_threshold" toml:"quorum_threshold"`
	ExpirationPeriod time.Duration `mapstructure:"expiration_period" toml:"expiration_period"`
}

type Ledger struct {
	// static reads Genesis, erc20 calls balanceOf on TokenAddress through DialUrl
	Source        string        `mapstructure:"source" toml:"source"`
	TokenAddress  string        `mapstructure:"token_address" toml:"token_address"`
	RetryLimit    uint          `mapstructure:"retry_limit" toml:"retry_limit"`
	RetryInterval time.Duration `mapstructure:"retry_interval" toml:"retry_interval"`
	// address => voting power
	Genesis map[string]uint64 `mapstructure:"genesis" toml:"genesis"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot: repoRoot,
		DialUrl:  "ws://localhost:9991",
		Log: Log{
			Level:        "info",
			Filename:     "cakedao.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Governance: Governance{
			QuorumThreshold:  DefaultTotalSupply / 2,
			ExpirationPeriod: 3 * 24 * time.Hour,
		},
		Ledger: Ledger{
			Source:        LedgerSourceStatic,
			RetryLimit:    5,
			RetryInterval: time.Second,
			Genesis: map[string]uint64{
				GenesisAccountAddr: DefaultTotalSupply,
			},
		},
	}
}

func (c *Config) Validate() error {
	if c.Governance.QuorumThreshold == 0 {
		return errors.New("governance.quorum_threshold must be positive")
	}
	if c.Governance.ExpirationPeriod <= 0 {
		return errors.New("governance.expiration_period must be positive")
	}

	switch strings.ToLower(c.Ledger.Source) {
	case LedgerSourceStatic:
		for addr := range c.Ledger.Genesis {
			if !common.IsHexAddress(addr) {
				return errors.Errorf("ledger.genesis: invalid address %q", addr)
			}
		}
	case LedgerSourceERC20:
		if !common.IsHexAddress(c.Ledger.TokenAddress) {
			return errors.Errorf("ledger.token_address: invalid address %q", c.Ledger.TokenAddress)
		}
		if c.Ledger.RetryLimit == 0 {
			return errors.New("ledger.retry_limit must be positive")
		}
	default:
		return errors.Errorf("ledger.source: unknown source %q", c.Ledger.Source)
	}

	return nil
}
