package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Static is an in-memory balance table, typically loaded from genesis config.
type Static struct {
	mu     sync.RWMutex
	powers map[common.Address]uint64
}

func NewStatic(genesis map[string]uint64) (*Static, error) {
	s := &Static{powers: make(map[common.Address]uint64, len(genesis))}
	for addr, power := range genesis {
		if !common.IsHexAddress(addr) {
			return nil, errors.Errorf("invalid genesis address %q", addr)
		}
		s.powers[common.HexToAddress(addr)] = power
	}
	return s, nil
}

func (s *Static) PowerOf(_ context.Context, addr common.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.powers[addr], nil
}

// SetPower overrides the power of addr.
func (s *Static) SetPower(addr common.Address, power uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.powers[addr] = power
}

func (s *Static) TotalSupply() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, power := range s.powers {
		total += power
	}
	return total
}
