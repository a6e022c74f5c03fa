package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var _ Client = (*MockClient)(nil)

// MockClient answers balanceOf calls from an in-memory table.
// It is safe for concurrent use once configured.
type MockClient struct {
	Balances map[common.Address]*big.Int

	// FailTimes makes the first calls fail
	FailTimes int

	parseOnce sync.Once
	abi       abi.ABI
	abiErr    error

	mu    sync.Mutex
	calls int
}

// Calls returns how many CallContract requests the client has served.
func (mc *MockClient) Calls() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.calls
}

func (mc *MockClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	mc.mu.Lock()
	mc.calls++
	fail := mc.calls <= mc.FailTimes
	mc.mu.Unlock()
	if fail {
		return nil, errors.New("mock rpc unavailable")
	}

	mc.parseOnce.Do(func() {
		mc.abi, mc.abiErr = parseERC20ABI()
	})
	if mc.abiErr != nil {
		return nil, mc.abiErr
	}
	method := mc.abi.Methods[balanceOfMethod]
	if len(call.Data) < 4 {
		return nil, errors.New("short call data")
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	balance, ok := mc.Balances[args[0].(common.Address)]
	if !ok {
		balance = new(big.Int)
	}
	return method.Outputs.Pack(balance)
}
