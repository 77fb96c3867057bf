package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"reserveScope/internal/model"
)

// State is a transaction lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitted  State = "submitted"
	StateConfirming State = "confirming"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// ErrInvalidTransition is returned when a state change is requested out of
// order, for example confirming a transaction that was never submitted.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Status is a point-in-time view of a tracker.
type Status struct {
	State  State
	TxHash common.Hash
	Reason string
}

// Tracker follows one submitted write through its lifecycle. Each write gets
// a fresh tracker; trackers never interleave observations from different
// transactions. Transitions always pass through Confirming on the way to a
// confirmed outcome, and the failure reason is preserved verbatim.
type Tracker struct {
	mu      sync.Mutex
	chainID uint64
	account common.Address
	kind    model.WriteKind
	state   State
	txHash  common.Hash
	reason  string
	receipt *types.Receipt
	subs    []chan Status
	done    chan struct{}
}

// NewTracker builds an idle tracker for one pending write.
func NewTracker(chainID uint64, account common.Address, kind model.WriteKind) *Tracker {
	return &Tracker{
		chainID: chainID,
		account: account,
		kind:    kind,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// ChainID returns the network the tracked write targets.
func (t *Tracker) ChainID() uint64 { return t.chainID }

// Account returns the account that signed the tracked write.
func (t *Tracker) Account() common.Address { return t.account }

// Kind returns the kind of write being tracked.
func (t *Tracker) Kind() model.WriteKind { return t.kind }

// Current returns the tracker's present status.
func (t *Tracker) Current() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Receipt returns the confirmation receipt, nil before Confirmed.
func (t *Tracker) Receipt() *types.Receipt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.receipt
}

// Done returns a channel closed when the tracker reaches a terminal state.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Subscribe returns a channel that first delivers the current status and then
// every subsequent transition. The channel is closed once the tracker reaches
// a terminal state or the submission is abandoned by Reset.
func (t *Tracker) Subscribe() <-chan Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Status, 8)
	ch <- t.statusLocked()
	if t.state.Terminal() {
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	return ch
}

// MarkSubmitted records that the write was broadcast under the given hash.
func (t *Tracker) MarkSubmitted(hash common.Hash) error {
	return t.transition([]State{StateIdle}, StateSubmitted, func() {
		t.txHash = hash
	})
}

// MarkConfirming records that the transaction was first observed on chain.
func (t *Tracker) MarkConfirming() error {
	return t.transition([]State{StateSubmitted}, StateConfirming, nil)
}

// MarkConfirmed records a successful confirmation with its receipt.
func (t *Tracker) MarkConfirmed(receipt *types.Receipt) error {
	return t.transition([]State{StateConfirming}, StateConfirmed, func() {
		t.receipt = receipt
	})
}

// MarkFailed records a terminal failure. The reason is kept as produced by
// the network so callers can surface it unchanged.
func (t *Tracker) MarkFailed(reason string) error {
	return t.transition([]State{StateSubmitted, StateConfirming}, StateFailed, func() {
		t.reason = reason
	})
}

// Reset returns the tracker to Idle so the handle can be reused for a new
// write. Resetting a live submission abandons it: subscribers are closed out
// without a terminal status, and an active watch fails on its next transition
// instead of resolving against the new scope.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
	t.state = StateIdle
	t.txHash = common.Hash{}
	t.reason = ""
	t.receipt = nil
	t.done = make(chan struct{})
}

func (t *Tracker) transition(from []State, to State, apply func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := false
	for _, s := range from {
		if t.state == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.state, to)
	}
	if apply != nil {
		apply()
	}
	t.state = to
	t.publishLocked()
	return nil
}

func (t *Tracker) statusLocked() Status {
	return Status{State: t.state, TxHash: t.txHash, Reason: t.reason}
}

func (t *Tracker) publishLocked() {
	status := t.statusLocked()
	for _, ch := range t.subs {
		select {
		case ch <- status:
		default:
		}
	}
	if status.State.Terminal() {
		for _, ch := range t.subs {
			close(ch)
		}
		t.subs = nil
		close(t.done)
	}
}
