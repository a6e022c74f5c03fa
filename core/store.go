package core

import (
	"encoding/json"
	"fmt"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
)

const (
	proposalKeyPrefix = "proposal/"
	tableKey          = "table"
)

// Store persists the proposal table. Records are JSON values keyed by id,
// the table key holds slot assignment and creation order.
type Store struct {
	db storage.Storage
}

type tableRecord struct {
	Slots [MaxActiveProposals]*common.Hash `json:"slots"`
	Order []common.Hash                    `json:"order"`
}

func NewStore(db storage.Storage) *Store {
	return &Store{db: db}
}

func proposalKey(id common.Hash) []byte {
	return []byte(proposalKeyPrefix + id.Hex())
}

func (s *Store) commit(tbl *tableRecord, dirty []*Proposal) error {
	tblData, err := json.Marshal(tbl)
	if err != nil {
		return fmt.Errorf("marshal proposal table: %w", err)
	}

	batch := s.db.NewBatch()
	for _, p := range dirty {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal proposal %s: %w", p.ID, err)
		}
		batch.Put(proposalKey(p.ID), data)
	}
	batch.Put([]byte(tableKey), tblData)
	batch.Commit()

	return nil
}

// load returns nil for a store that was never written.
func (s *Store) load() (*tableRecord, map[common.Hash]*Proposal, error) {
	data := s.db.Get([]byte(tableKey))
	if data == nil {
		return nil, nil, nil
	}

	tbl := &tableRecord{}
	if err := json.Unmarshal(data, tbl); err != nil {
		return nil, nil, fmt.Errorf("unmarshal proposal table: %w", err)
	}

	proposals := make(map[common.Hash]*Proposal, len(tbl.Order))
	for _, id := range tbl.Order {
		raw := s.db.Get(proposalKey(id))
		if raw == nil {
			return nil, nil, fmt.Errorf("proposal %s missing from store", id)
		}
		p := &Proposal{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, nil, fmt.Errorf("unmarshal proposal %s: %w", id, err)
		}
		if p.VotesCommitted == nil {
			p.VotesCommitted = make(map[common.Address]uint64)
		}
		proposals[id] = p
	}

	for i, id := range tbl.Slots {
		if id == nil {
			continue
		}
		p, ok := proposals[*id]
		if !ok || p.State != Active {
			return nil, nil, fmt.Errorf("slot %d references non-active proposal %s", i, id)
		}
	}

	return tbl, proposals, nil
}
