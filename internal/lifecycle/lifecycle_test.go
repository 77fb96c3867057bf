package lifecycle

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"reserveScope/internal/model"
)

var testHash = common.HexToHash("0xbbbb000000000000000000000000000000000000000000000000000000000001")

func newSubmittedTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker := NewTracker(5003, common.HexToAddress("0x5555555555555555555555555555555555555555"), model.WriteTransfer)
	if err := tracker.MarkSubmitted(testHash); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	return tracker
}

func TestTrackerHappyPath(t *testing.T) {
	tracker := NewTracker(5003, common.HexToAddress("0x5555555555555555555555555555555555555555"), model.WriteTransfer)
	if got := tracker.Current().State; got != StateIdle {
		t.Fatalf("fresh tracker state: %s", got)
	}

	if err := tracker.MarkSubmitted(testHash); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	status := tracker.Current()
	if status.State != StateSubmitted || status.TxHash != testHash {
		t.Fatalf("submitted status mismatch: %+v", status)
	}

	if err := tracker.MarkConfirming(); err != nil {
		t.Fatalf("mark confirming: %v", err)
	}

	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: testHash}
	if err := tracker.MarkConfirmed(receipt); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}
	if got := tracker.Current().State; got != StateConfirmed {
		t.Fatalf("final state: %s", got)
	}
	if tracker.Receipt() != receipt {
		t.Fatalf("receipt not retained")
	}

	select {
	case <-tracker.Done():
	default:
		t.Fatalf("done channel not closed at terminal state")
	}
}

func TestTrackerRejectsSkippedTransitions(t *testing.T) {
	tracker := NewTracker(5003, common.Address{}, model.WriteTransfer)

	if err := tracker.MarkConfirming(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirming from idle: %v", err)
	}
	if err := tracker.MarkConfirmed(nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirmed from idle: %v", err)
	}
	if err := tracker.MarkFailed("boom"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed from idle: %v", err)
	}

	if err := tracker.MarkSubmitted(testHash); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	if err := tracker.MarkConfirmed(nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirmed must pass through confirming: %v", err)
	}
	if err := tracker.MarkSubmitted(testHash); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double submit: %v", err)
	}
}

func TestTrackerTerminalStatesAreFinal(t *testing.T) {
	tracker := newSubmittedTracker(t)
	if err := tracker.MarkFailed("nonce too low"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := tracker.MarkConfirming(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("transition out of failed: %v", err)
	}
	if err := tracker.MarkSubmitted(testHash); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("submit out of failed: %v", err)
	}
}

func TestTrackerFailureReasonVerbatim(t *testing.T) {
	tracker := newSubmittedTracker(t)
	if err := tracker.MarkConfirming(); err != nil {
		t.Fatalf("mark confirming: %v", err)
	}

	reason := "execution reverted: ERC20: transfer amount exceeds balance"
	if err := tracker.MarkFailed(reason); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if got := tracker.Current().Reason; got != reason {
		t.Fatalf("reason mismatch: %q", got)
	}
}

func TestTrackerResetAbandonsLiveSubmission(t *testing.T) {
	tracker := newSubmittedTracker(t)
	sub := tracker.Subscribe()
	if got := (<-sub).State; got != StateSubmitted {
		t.Fatalf("initial subscription state: %s", got)
	}

	tracker.Reset()

	if _, open := <-sub; open {
		t.Fatalf("subscriber not closed out on reset")
	}
	status := tracker.Current()
	if status.State != StateIdle || status.TxHash != (common.Hash{}) {
		t.Fatalf("reset left residue: %+v", status)
	}
	if err := tracker.MarkSubmitted(testHash); err != nil {
		t.Fatalf("reuse after reset: %v", err)
	}
}

func TestTrackerResetClearsTerminalResidue(t *testing.T) {
	tracker := newSubmittedTracker(t)
	if err := tracker.MarkFailed("boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	tracker.Reset()

	status := tracker.Current()
	if status.State != StateIdle || status.TxHash != (common.Hash{}) || status.Reason != "" {
		t.Fatalf("reset left residue: %+v", status)
	}

	select {
	case <-tracker.Done():
		t.Fatalf("done channel not replaced on reset")
	default:
	}

	if err := tracker.MarkSubmitted(testHash); err != nil {
		t.Fatalf("reuse after reset: %v", err)
	}
}

func TestSubscribeDeliversTransitions(t *testing.T) {
	tracker := newSubmittedTracker(t)
	sub := tracker.Subscribe()

	first := <-sub
	if first.State != StateSubmitted {
		t.Fatalf("expected current status first, got %s", first.State)
	}

	if err := tracker.MarkConfirming(); err != nil {
		t.Fatalf("mark confirming: %v", err)
	}
	if err := tracker.MarkConfirmed(&types.Receipt{Status: types.ReceiptStatusSuccessful}); err != nil {
		t.Fatalf("mark confirmed: %v", err)
	}

	var states []State
	for status := range sub {
		states = append(states, status.State)
	}
	if len(states) != 2 || states[0] != StateConfirming || states[1] != StateConfirmed {
		t.Fatalf("transition sequence mismatch: %v", states)
	}
}

func TestSubscribeAfterTerminal(t *testing.T) {
	tracker := newSubmittedTracker(t)
	if err := tracker.MarkFailed("boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	sub := tracker.Subscribe()
	status, ok := <-sub
	if !ok || status.State != StateFailed {
		t.Fatalf("expected terminal status, got %+v ok=%v", status, ok)
	}
	if _, ok := <-sub; ok {
		t.Fatalf("channel must be closed after terminal delivery")
	}
}
