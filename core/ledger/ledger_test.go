package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/cakedao/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	token = common.HexToAddress("0x00000000000000000000000000000000000cace0")
)

func TestStatic(t *testing.T) {
	s, err := NewStatic(map[string]uint64{
		alice.Hex(): 25_000_000,
		bob.Hex():   40_000_000,
	})
	require.Nil(t, err)

	power, err := s.PowerOf(context.Background(), alice)
	require.Nil(t, err)
	assert.Equal(t, uint64(25_000_000), power)

	power, err = s.PowerOf(context.Background(), common.Address{})
	require.Nil(t, err)
	assert.Equal(t, uint64(0), power)

	assert.Equal(t, uint64(65_000_000), s.TotalSupply())

	s.SetPower(alice, 1)
	power, err = s.PowerOf(context.Background(), alice)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), power)
}

func TestStaticInvalidAddress(t *testing.T) {
	_, err := NewStatic(map[string]uint64{"alice": 1})
	assert.NotNil(t, err)
}

func TestERC20(t *testing.T) {
	client := &MockClient{
		Balances: map[common.Address]*big.Int{
			alice: big.NewInt(25_000_000),
		},
	}
	reader, err := NewERC20(client, token, 3, 0, log.New())
	require.Nil(t, err)

	power, err := reader.PowerOf(context.Background(), alice)
	require.Nil(t, err)
	assert.Equal(t, uint64(25_000_000), power)

	power, err = reader.PowerOf(context.Background(), bob)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), power)
}

func TestERC20Retry(t *testing.T) {
	client := &MockClient{
		Balances:  map[common.Address]*big.Int{alice: big.NewInt(7)},
		FailTimes: 2,
	}
	reader, err := NewERC20(client, token, 3, 0, log.New())
	require.Nil(t, err)

	power, err := reader.PowerOf(context.Background(), alice)
	require.Nil(t, err)
	assert.Equal(t, uint64(7), power)
	assert.Equal(t, 3, client.Calls())

	client = &MockClient{
		Balances:  map[common.Address]*big.Int{alice: big.NewInt(7)},
		FailTimes: 5,
	}
	reader, err = NewERC20(client, token, 3, 0, log.New())
	require.Nil(t, err)
	_, err = reader.PowerOf(context.Background(), alice)
	assert.NotNil(t, err)
	assert.GreaterOrEqual(t, client.Calls(), 3)
	assert.Less(t, client.Calls(), 5)
}

func TestERC20Concurrent(t *testing.T) {
	client := &MockClient{Balances: map[common.Address]*big.Int{
		alice: big.NewInt(11),
		bob:   big.NewInt(22),
	}}
	reader, err := NewERC20(client, token, 1, 0, log.New())
	require.Nil(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr, want := alice, uint64(11)
			if i%2 == 1 {
				addr, want = bob, 22
			}
			power, err := reader.PowerOf(context.Background(), addr)
			if err == nil && power != want {
				err = fmt.Errorf("power of %s: got %d, want %d", addr, power, want)
			}
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.Nil(t, err)
	}
	assert.Equal(t, workers, client.Calls())
}

func TestERC20Overflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	client := &MockClient{Balances: map[common.Address]*big.Int{alice: huge}}
	reader, err := NewERC20(client, token, 1, 0, log.New())
	require.Nil(t, err)

	_, err = reader.PowerOf(context.Background(), alice)
	assert.NotNil(t, err)
}

func TestNewFromConfig(t *testing.T) {
	c := repo.DefaultConfig(t.TempDir())

	oracle, err := New(context.Background(), c, log.New())
	require.Nil(t, err)

	power, err := oracle.PowerOf(context.Background(), common.HexToAddress(repo.GenesisAccountAddr))
	require.Nil(t, err)
	assert.Equal(t, repo.DefaultTotalSupply, power)

	c.Ledger.Source = "unknown"
	_, err = New(context.Background(), c, log.New())
	assert.NotNil(t, err)
}
