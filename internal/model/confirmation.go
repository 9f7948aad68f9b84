package model

import "time"

// PendingConfirmation is a proposed bid awaiting an explicit confirm or
// cancel from its proposer.  No points are locked while a proposal is
// pending; locks are only touched at confirm time, so expiry and cancel
// unwind with no side effects.
//
// Fields:
//  Handle    – opaque token identifying the proposal to the caller.
//  Member    – proposing member's name.
//  LotID     – lot the proposal targets.
//  Amount    – full proposed bid amount.
//  Needed    – points that must be newly available: the full amount for
//              a fresh bid, only the delta above the already-locked hold
//              when the proposer is the current leader (self-overbid).
//  SelfRaise – true when the proposer is the current leader.
//  CreatedAt – proposal time.
//  ExpiresAt – automatic expiry (confirm timeout).
type PendingConfirmation struct {
    Handle    string    `json:"handle"`
    Member    string    `json:"member"`
    LotID     string    `json:"lot_id"`
    Amount    int64     `json:"amount"`
    Needed    int64     `json:"needed"`
    SelfRaise bool      `json:"self_raise"`
    CreatedAt time.Time `json:"created_at"`
    ExpiresAt time.Time `json:"expires_at"`
}
