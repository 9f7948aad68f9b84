// Package engine implements the auction and bidding engine: the lot
// queue, the per-lot auction state machine, the two-phase bid
// confirmation protocol, the points lock manager and the session
// coordinator that drives lots sequentially and reconciles totals
// against the external ledger.
package engine

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by engine operations.  Handlers translate
// these into HTTP responses; everything else is treated as an internal
// failure.  All are wrapped with %w so callers can use errors.Is.

// ErrValidation is returned for malformed or out-of-range bid input,
// such as a non-positive amount or a bid that does not strictly exceed
// the current high bid.  Never retried.
var ErrValidation = errors.New("invalid bid")

// ErrInsufficientFunds is returned when a member's available points
// (total minus locked) fall short of the delta a proposal requires.
var ErrInsufficientFunds = errors.New("insufficient points")

// ErrRaceLost is returned when a confirmation is pre-empted by a higher
// concurrent proposal.  The highest pending amount wins the race, not
// the first proposer to confirm.  Not a system fault.
var ErrRaceLost = errors.New("outbid by a higher pending proposal")

// ErrRateLimited is returned when a member proposes again before their
// cooldown since the last proposal has elapsed.
var ErrRateLimited = errors.New("bid rate limit")

// RateLimitError carries the remaining cooldown so transports can set a
// Retry-After header.  errors.Is(err, ErrRateLimited) matches it.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("bid rate limit: retry in %s", e.Wait.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ErrStateUnavailable is returned when an operation requires an active
// lot or session and none exists.
var ErrStateUnavailable = errors.New("no active auction")

// ErrForbidden is returned when the confirming identity is neither the
// proposer nor an administrative override.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a handle or queued lot does not exist.
var ErrNotFound = errors.New("not found")

// ErrSessionActive is returned when a session start races an already
// active or starting session.
var ErrSessionActive = errors.New("session already active")

// ErrExternalService is returned when the ledger is unreachable or keeps
// failing after bounded retries.  At balance-load time this aborts the
// session start; at submission time cleanup still proceeds and the error
// is surfaced for manual reconciliation.
var ErrExternalService = errors.New("ledger service failure")

// ErrStateCorruption is returned when persisted state cannot be
// reconstructed on restart.  Recovery responds with a safe reset of the
// in-flight auction state rather than guessing intent.
var ErrStateCorruption = errors.New("persisted state corrupt")
