package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

type ProposalCreated struct {
	ID        common.Hash
	ExpiresAt time.Time
}

type VoteCast struct {
	ID        common.Hash
	Voter     common.Address
	Amount    uint64
	Direction Direction
}

// ProposalResolved fires on quorum and on lazy expiration alike.
type ProposalResolved struct {
	ID         common.Hash
	FinalState ProposalState
}

type feeds struct {
	created  event.Feed
	voteCast event.Feed
	resolved event.Feed
}

// send delivers notifications collected during one operation, in order.
// It blocks until every subscriber has received each value.
func (f *feeds) send(pending []any) {
	for _, ev := range pending {
		switch e := ev.(type) {
		case ProposalCreated:
			f.created.Send(e)
		case VoteCast:
			f.voteCast.Send(e)
		case ProposalResolved:
			f.resolved.Send(e)
		}
	}
}

func (e *Engine) SubscribeProposalCreated(ch chan<- ProposalCreated) event.Subscription {
	return e.feeds.created.Subscribe(ch)
}

func (e *Engine) SubscribeVoteCast(ch chan<- VoteCast) event.Subscription {
	return e.feeds.voteCast.Subscribe(ch)
}

func (e *Engine) SubscribeProposalResolved(ch chan<- ProposalResolved) event.Subscription {
	return e.feeds.resolved.Subscribe(ch)
}
