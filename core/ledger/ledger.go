package ledger

import (
	"context"
	"strings"

	"github.com/axiomesh/cakedao/core"
	"github.com/axiomesh/cakedao/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	_ core.Oracle = (*Static)(nil)
	_ core.Oracle = (*ERC20)(nil)
)

// New builds the voting power source selected by config.
func New(ctx context.Context, config *repo.Config, logger logrus.FieldLogger) (core.Oracle, error) {
	switch strings.ToLower(config.Ledger.Source) {
	case repo.LedgerSourceStatic:
		s, err := NewStatic(config.Ledger.Genesis)
		if err != nil {
			return nil, err
		}
		return s, nil
	case repo.LedgerSourceERC20:
		client, err := ethclient.DialContext(ctx, config.DialUrl)
		if err != nil {
			return nil, errors.Wrapf(err, "dial %s", config.DialUrl)
		}
		token, err := NewERC20(client, common.HexToAddress(config.Ledger.TokenAddress), config.Ledger.RetryLimit, config.Ledger.RetryInterval, logger)
		if err != nil {
			return nil, err
		}
		return token, nil
	default:
		return nil, errors.Errorf("unknown ledger source %q", config.Ledger.Source)
	}
}
