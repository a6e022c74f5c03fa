package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/cakedao/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Oracle reports the current voting power of an address.
type Oracle interface {
	PowerOf(ctx context.Context, addr common.Address) (uint64, error)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		e.Logger = logger
	}
}

// WithStore persists every successful operation and restores the table on start.
func WithStore(store *Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = newEngineMetrics(reg)
	}
}

// Engine owns the proposal table. Every operation runs under one lock, and
// either commits all of its effects or none of them.
type Engine struct {
	Logger *logrus.Logger

	oracle     Oracle
	quorum     uint64
	expiration time.Duration
	now        func() time.Time
	store      *Store
	metrics    *engineMetrics

	mu        sync.RWMutex
	slots     [MaxActiveProposals]*Proposal
	proposals map[common.Hash]*Proposal
	order     []common.Hash

	feeds feeds
}

func NewEngine(config *repo.Config, oracle Oracle, opts ...Option) (*Engine, error) {
	if config.Governance.QuorumThreshold == 0 {
		return nil, errors.New("quorum threshold must be positive")
	}
	if config.Governance.ExpirationPeriod <= 0 {
		return nil, errors.New("expiration period must be positive")
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	e := &Engine{
		Logger:     logger,
		oracle:     oracle,
		quorum:     config.Governance.QuorumThreshold,
		expiration: config.Governance.ExpirationPeriod,
		now:        time.Now,
		proposals:  make(map[common.Hash]*Proposal),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store != nil {
		if err := e.restore(); err != nil {
			return nil, err
		}
	}
	e.updateActiveGauge()

	return e, nil
}

func (e *Engine) restore() error {
	tbl, proposals, err := e.store.load()
	if err != nil {
		return fmt.Errorf("restore proposal table: %w", err)
	}
	if tbl == nil {
		return nil
	}

	e.proposals = proposals
	e.order = tbl.Order
	for i, id := range tbl.Slots {
		if id != nil {
			e.slots[i] = proposals[*id]
		}
	}

	e.Logger.WithFields(logrus.Fields{
		"proposals": len(e.order),
		"active":    e.activeCount(),
	}).Info("restore proposal table")
	return nil
}

// CreateProposal admits a new active proposal. When every slot is taken, one
// expired proposal is evicted to make room.
func (e *Engine) CreateProposal(ctx context.Context, id common.Hash, requester common.Address) error {
	e.mu.Lock()
	pending, err := e.createProposal(ctx, id, requester)
	if err != nil {
		e.mu.Unlock()
		e.reject("create", err)
		e.Logger.WithFields(logrus.Fields{
			"id":        id,
			"requester": requester,
		}).Debugf("reject proposal: %s", err)
		return err
	}
	e.publish(pending)
	return nil
}

func (e *Engine) createProposal(ctx context.Context, id common.Hash, requester common.Address) ([]any, error) {
	if _, ok := e.proposals[id]; ok {
		return nil, fmt.Errorf("create proposal %s: %w", id, ErrDuplicateProposal)
	}

	power, err := e.oracle.PowerOf(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("query voting power of %s: %w", requester, err)
	}
	if power == 0 {
		return nil, fmt.Errorf("create proposal %s by %s: %w", id, requester, ErrInsufficientPower)
	}

	now := e.now()
	slot := e.freeSlot()
	var evicted *Proposal
	if slot < 0 {
		slot = e.evictionCandidate(now)
		if slot < 0 {
			return nil, fmt.Errorf("create proposal %s: %w", id, ErrCapacityExceeded)
		}
		evicted = e.slots[slot].clone()
		evicted.State = Expired
	}

	p := &Proposal{
		ID:             id,
		CreatedAt:      now,
		ExpiresAt:      now.Add(e.expiration),
		State:          Active,
		Sequence:       uint64(len(e.order)) + 1,
		VotesCommitted: make(map[common.Address]uint64),
	}

	slots := e.slots
	slots[slot] = p
	order := append(e.order[:len(e.order):len(e.order)], id)

	var pending []any
	dirty := []*Proposal{p}
	if evicted != nil {
		dirty = append(dirty, evicted)
		pending = append(pending, ProposalResolved{ID: evicted.ID, FinalState: Expired})
	}
	pending = append(pending, ProposalCreated{ID: id, ExpiresAt: p.ExpiresAt})

	if err := e.persist(slots, order, dirty); err != nil {
		return nil, err
	}

	// commit
	e.slots = slots
	e.order = order
	for _, d := range dirty {
		e.proposals[d.ID] = d
	}

	if evicted != nil {
		e.Logger.WithFields(logrus.Fields{
			"id":         evicted.ID,
			"slot":       slot,
			"expires_at": evicted.ExpiresAt,
		}).Info("evict expired proposal")
		e.resolved(Expired)
	}
	e.Logger.WithFields(logrus.Fields{
		"id":         id,
		"requester":  requester,
		"slot":       slot,
		"expires_at": p.ExpiresAt,
	}).Info("create proposal")
	if e.metrics != nil {
		e.metrics.createdProposals.Inc()
	}
	e.updateActiveGauge()

	return pending, nil
}

// Vote spends amount of the requester's current power on one side of an
// active proposal. The running total a voter commits to a proposal never
// exceeds the power observed by the call.
func (e *Engine) Vote(ctx context.Context, id common.Hash, requester common.Address, amount uint64, direction Direction) error {
	e.mu.Lock()
	pending, err := e.vote(ctx, id, requester, amount, direction)
	if err != nil {
		e.mu.Unlock()
		e.reject("vote", err)
		e.Logger.WithFields(logrus.Fields{
			"id":        id,
			"voter":     requester,
			"amount":    amount,
			"direction": direction,
		}).Debugf("reject vote: %s", err)
		return err
	}
	e.publish(pending)
	return nil
}

func (e *Engine) vote(ctx context.Context, id common.Hash, requester common.Address, amount uint64, direction Direction) ([]any, error) {
	cur, ok := e.proposals[id]
	if !ok || cur.State != Active {
		return nil, fmt.Errorf("vote on %s: %w", id, ErrProposalNotActive)
	}
	if cur.ExpiredAt(e.now()) {
		return nil, fmt.Errorf("vote on %s: %w", id, ErrProposalExpired)
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if direction != For && direction != Against {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, direction)
	}

	power, err := e.oracle.PowerOf(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("query voting power of %s: %w", requester, err)
	}
	committed := cur.VotesCommitted[requester]
	total, overflow := math.SafeAdd(committed, amount)
	if overflow || total > power {
		return nil, fmt.Errorf("vote %d on %s by %s with %d of %d committed: %w", amount, id, requester, committed, power, ErrInsufficientPower)
	}

	p := cur.clone()
	p.VotesCommitted[requester] = total
	if direction == For {
		p.ForVotes, overflow = math.SafeAdd(p.ForVotes, amount)
	} else {
		p.AgainstVotes, overflow = math.SafeAdd(p.AgainstVotes, amount)
	}
	if overflow {
		return nil, fmt.Errorf("tally overflow on %s: %w", id, ErrInsufficientPower)
	}

	pending := []any{VoteCast{ID: id, Voter: requester, Amount: amount, Direction: direction}}

	slots := e.slots
	if state := e.quorumState(p, direction); state != Active {
		p.State = state
		slots[e.slotOf(id)] = nil
		pending = append(pending, ProposalResolved{ID: id, FinalState: state})
	}

	if err := e.persist(slots, e.order, []*Proposal{p}); err != nil {
		return nil, err
	}

	// commit
	e.slots = slots
	e.proposals[id] = p

	e.Logger.WithFields(logrus.Fields{
		"id":        id,
		"voter":     requester,
		"amount":    amount,
		"direction": direction,
		"for":       p.ForVotes,
		"against":   p.AgainstVotes,
	}).Info("cast vote")
	if e.metrics != nil {
		e.metrics.votesCast.Inc()
	}
	if p.State != Active {
		e.Logger.WithFields(logrus.Fields{
			"id":    id,
			"state": p.State,
		}).Info("resolve proposal")
		e.resolved(p.State)
		e.updateActiveGauge()
	}

	return pending, nil
}

// quorumState checks the side just voted for first.
func (e *Engine) quorumState(p *Proposal, direction Direction) ProposalState {
	accepted := p.ForVotes >= e.quorum
	rejected := p.AgainstVotes >= e.quorum
	if direction == For {
		if accepted {
			return Accepted
		}
		if rejected {
			return Rejected
		}
	} else {
		if rejected {
			return Rejected
		}
		if accepted {
			return Accepted
		}
	}
	return Active
}

func (e *Engine) freeSlot() int {
	for i, p := range e.slots {
		if p == nil {
			return i
		}
	}
	return -1
}

// evictionCandidate picks the expired slot with the earliest deadline, lowest
// index on ties.
func (e *Engine) evictionCandidate(now time.Time) int {
	candidate := -1
	for i, p := range e.slots {
		if p == nil || !p.ExpiredAt(now) {
			continue
		}
		if candidate < 0 || p.ExpiresAt.Before(e.slots[candidate].ExpiresAt) {
			candidate = i
		}
	}
	return candidate
}

func (e *Engine) slotOf(id common.Hash) int {
	for i, p := range e.slots {
		if p != nil && p.ID == id {
			return i
		}
	}
	panic(fmt.Sprintf("active proposal %s has no slot", id))
}

func (e *Engine) persist(slots [MaxActiveProposals]*Proposal, order []common.Hash, dirty []*Proposal) error {
	if e.store == nil {
		return nil
	}

	tbl := &tableRecord{Order: order}
	for i, p := range slots {
		if p != nil {
			id := p.ID
			tbl.Slots[i] = &id
		}
	}
	if err := e.store.commit(tbl, dirty); err != nil {
		return fmt.Errorf("persist proposal table: %w", err)
	}
	return nil
}

// publish releases the table lock and delivers the operation's notifications.
// No engine lock is held while subscribers receive, so they may query or
// mutate the engine. Notifications of one operation keep their order;
// concurrent operations may interleave theirs.
// Must be called with e.mu held.
func (e *Engine) publish(pending []any) {
	e.mu.Unlock()
	e.feeds.send(pending)
}

func (e *Engine) reject(op string, err error) {
	if e.metrics != nil {
		e.metrics.rejectedOps.WithLabelValues(op, ErrorKind(err)).Inc()
	}
}

func (e *Engine) resolved(state ProposalState) {
	if e.metrics != nil {
		e.metrics.resolvedProposals.WithLabelValues(state.String()).Inc()
	}
}

func (e *Engine) updateActiveGauge() {
	if e.metrics != nil {
		e.metrics.activeProposals.Set(float64(e.activeCount()))
	}
}

func (e *Engine) activeCount() int {
	n := 0
	for _, p := range e.slots {
		if p != nil {
			n++
		}
	}
	return n
}

// ActiveCount returns the number of occupied slots. An expired proposal keeps
// its slot until it is evicted.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.activeCount()
}

// State returns None for unknown ids.
func (e *Engine) State(id common.Hash) ProposalState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.proposals[id]
	if !ok {
		return None
	}
	return p.State
}

func (e *Engine) Expiration(id common.Hash) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.proposals[id]
	if !ok {
		return time.Time{}, false
	}
	return p.ExpiresAt, true
}

// Tally returns a zero tally for unknown ids.
func (e *Engine) Tally(id common.Hash) Tally {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.proposals[id]
	if !ok {
		return Tally{}
	}
	return p.Tally()
}

func (e *Engine) Committed(id common.Hash, voter common.Address) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.proposals[id]
	if !ok {
		return 0
	}
	return p.VotesCommitted[voter]
}

// Proposal returns a copy of the record.
func (e *Engine) Proposal(id common.Hash) (*Proposal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.proposals[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// ActiveProposals lists the ids occupying slots, in slot order.
func (e *Engine) ActiveProposals() []common.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var ids []common.Hash
	for _, p := range e.slots {
		if p != nil {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// Proposals returns copies of every record in creation order.
func (e *Engine) Proposals() []*Proposal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ps := make([]*Proposal, 0, len(e.order))
	for _, id := range e.order {
		ps = append(ps, e.proposals[id].clone())
	}
	return ps
}
