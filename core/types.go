package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxActiveProposals is the number of proposal slots.
const MaxActiveProposals = 3

type ProposalState uint8

const (
	// None is reported for ids that were never created
	None ProposalState = iota
	Active
	Accepted
	Rejected
	Expired
)

func (s ProposalState) String() string {
	switch s {
	case None:
		return "none"
	case Active:
		return "active"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s ProposalState) Terminal() bool {
	return s == Accepted || s == Rejected || s == Expired
}

type Direction uint8

const (
	For Direction = iota
	Against
)

func (d Direction) String() string {
	switch d {
	case For:
		return "for"
	case Against:
		return "against"
	default:
		return "unknown"
	}
}

type Tally struct {
	ForVotes     uint64
	AgainstVotes uint64
}

type Proposal struct {
	ID        common.Hash
	CreatedAt time.Time
	ExpiresAt time.Time
	State     ProposalState

	// Sequence is the creation order, starting from 1
	Sequence uint64

	ForVotes     uint64
	AgainstVotes uint64

	// VotesCommitted records the power each voter already spent on this proposal
	VotesCommitted map[common.Address]uint64
}

func (p *Proposal) Tally() Tally {
	return Tally{ForVotes: p.ForVotes, AgainstVotes: p.AgainstVotes}
}

// ExpiredAt reports whether the voting window is closed at t.
func (p *Proposal) ExpiredAt(t time.Time) bool {
	return !t.Before(p.ExpiresAt)
}

func (p *Proposal) clone() *Proposal {
	cp := *p
	cp.VotesCommitted = make(map[common.Address]uint64, len(p.VotesCommitted))
	for addr, amount := range p.VotesCommitted {
		cp.VotesCommitted[addr] = amount
	}
	return &cp
}

// ProposalID returns the content hash callers use as a proposal id.
func ProposalID(description string) common.Hash {
	return crypto.Keccak256Hash([]byte(description))
}
