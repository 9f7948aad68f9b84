package model

import "time"

// Session captures the state of one full run of the auction queue, from
// the first lot through finalization against the ledger.  It is created
// by the coordinator at start and cleared after finalization.
//
// Fields:
//  Timestamp – human-readable session stamp submitted to the ledger
//              alongside the results.
//  StartedAt – session start time.
//  History   – closure reports for every lot driven so far.
type Session struct {
    Timestamp string      `json:"timestamp"`
    StartedAt time.Time   `json:"started_at"`
    History   []LotResult `json:"history"`
}

// MemberResult is one row of the finalized session result set.  The set
// contains an entry for every member known to the ledger snapshot, with
// TotalSpent zero for members who won nothing, so the submitted record
// is complete and auditable.
type MemberResult struct {
    Member     string `json:"member"`
    TotalSpent int64  `json:"totalSpent"`
}
