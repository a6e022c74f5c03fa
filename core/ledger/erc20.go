package ledger

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

const balanceOfMethod = "balanceOf"

func parseERC20ABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(erc20BalanceOfABI))
}

// Client is the subset of ethclient.Client the token reader needs.
type Client interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC20 reads voting power as the token balance at the latest block.
type ERC20 struct {
	client   Client
	token    common.Address
	abi      abi.ABI
	limit    uint
	interval time.Duration
	logger   logrus.FieldLogger
}

func NewERC20(client Client, token common.Address, retryLimit uint, retryInterval time.Duration, logger logrus.FieldLogger) (*ERC20, error) {
	parsed, err := parseERC20ABI()
	if err != nil {
		return nil, errors.Wrap(err, "parse erc20 abi")
	}
	if retryLimit == 0 {
		retryLimit = 1
	}

	return &ERC20{
		client:   client,
		token:    token,
		abi:      parsed,
		limit:    retryLimit,
		interval: retryInterval,
		logger:   logger,
	}, nil
}

func (t *ERC20) PowerOf(ctx context.Context, addr common.Address) (uint64, error) {
	data, err := t.abi.Pack(balanceOfMethod, addr)
	if err != nil {
		return 0, errors.Wrap(err, "pack balanceOf")
	}

	var out []byte
	action := func(attempt uint) error {
		out, err = t.client.CallContract(ctx, ethereum.CallMsg{To: &t.token, Data: data}, nil)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"account": addr,
				"attempt": attempt,
			}).Warnf("call balanceOf error: %s", err)
			return err
		}
		return nil
	}
	if err := retry.Retry(action, strategy.Limit(t.limit), strategy.Backoff(backoff.Fibonacci(t.interval))); err != nil {
		return 0, errors.Wrapf(err, "call balanceOf(%s) on %s", addr, t.token)
	}

	values, err := t.abi.Unpack(balanceOfMethod, out)
	if err != nil {
		return 0, errors.Wrap(err, "unpack balanceOf")
	}
	if len(values) != 1 {
		return 0, errors.Errorf("balanceOf returned %d values", len(values))
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return 0, errors.Errorf("balanceOf returned %T", values[0])
	}
	if !balance.IsUint64() {
		return 0, errors.Errorf("balance %s of %s exceeds uint64", balance, addr)
	}

	return balance.Uint64(), nil
}
