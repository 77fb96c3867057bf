package token

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedAddress means the network has no configured deployment.
	// No call is attempted when this is returned.
	ErrUnresolvedAddress = errors.New("no contract deployment for network")

	// ErrSignerUnavailable means a write call was requested without a signer
	// capability. Checked before any submission work happens.
	ErrSignerUnavailable = errors.New("signer capability not available")

	// ErrUserRejected means the signer capability reported that the holder
	// declined the submission.
	ErrUserRejected = errors.New("submission rejected by signer")

	// ErrMissingTokenMetadata means an amount could not be encoded because no
	// token snapshot has been fetched yet, so the decimal count is unknown.
	ErrMissingTokenMetadata = errors.New("token metadata not fetched")
)

// RPCError wraps a transport failure on the read path. Reads are side-effect
// free, so an RPCError is safe to retry.
type RPCError struct {
	Method string
	Err    error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc call %s: %v", e.Method, e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// DecodeError reports response data that does not match the contract schema.
type DecodeError struct {
	Method string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SubmissionError wraps a transport failure while broadcasting a write call.
// Never retried automatically; resubmission is an explicit caller action.
type SubmissionError struct {
	Method string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Method, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// RevertError carries the revert reason reported by the contract, verbatim.
// Owner-gated calls rejected on-chain surface this way; the layer never
// reinterprets the reason string.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: %s", e.Reason)
}
