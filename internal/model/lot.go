package model

import "time"

// Lot lifecycle states.  A lot begins queued, moves to preview when the
// coordinator picks it up, to active once bidding opens, and to ended at
// its deadline or on a forced close.
const (
    LotQueued  = "queued"
    LotPreview = "preview"
    LotActive  = "active"
    LotEnded   = "ended"
)

// Lot provenance tags.  Catalog lots come from the recurring item list
// and may be requeued for the next session when unsold; manual lots were
// entered ad hoc and are only logged when they fail to sell.
const (
    SourceCatalog = "catalog"
    SourceManual  = "manual"
)

// Lot describes a single item awaiting auction.  Lots are immutable once
// an auction begins; all runtime bidding state lives on LotRuntime.
//
// Fields:
//  ID         – unique identifier assigned at enqueue time.
//  Item       – item label shown to bidders.
//  StartPrice – minimum opening bid in points.
//  Duration   – active bidding window before extensions.
//  Quantity   – 1 for a single-winner lot, K>1 for a batch lot awarded
//               to the top K bidders at their own bid amounts.
//  Source     – provenance tag (catalog or manual).
//  AddedAt    – when the lot was enqueued.
type Lot struct {
    ID         string        `json:"id"`
    Item       string        `json:"item"`
    StartPrice int64         `json:"start_price"`
    Duration   time.Duration `json:"duration"`
    Quantity   int           `json:"quantity"`
    Source     string        `json:"source"`
    AddedAt    time.Time     `json:"added_at"`
}

// Batch reports whether the lot is awarded to multiple top bidders.
func (l Lot) Batch() bool { return l.Quantity > 1 }

// Bid is one confirmed bid in a lot's history.  The slice of bids on a
// LotRuntime is append-only and ordered by confirmation time.
type Bid struct {
    Member   string    `json:"member"`
    Amount   int64     `json:"amount"`
    PlacedAt time.Time `json:"placed_at"`
}

// LotRuntime carries the mutable auction state for the lot currently
// being driven by the state machine.  It is created when the lot leaves
// the queue and archived when the lot ends.
//
// Fields:
//  Lot        – the immutable lot being auctioned.
//  Status     – preview, active or ended.
//  HighBid    – current high bid; equals Lot.StartPrice until the first
//               confirmed bid, in which case Leader is empty.
//  Leader     – member holding the current high bid ("" when no bids).
//  Deadline   – moment the active countdown ends; moves on extension.
//  ExtCount   – number of anti-snipe extensions applied so far.
//  Bids       – full confirmed-bid history.
//  GoingOnce, GoingTwice, FinalCall – idempotency flags for the three
//               milestone announcements; reset when the deadline moves.
//  Paused     – true while the countdown is suspended.
//  Remaining  – time left on the countdown, captured at pause.
type LotRuntime struct {
    Lot        Lot           `json:"lot"`
    Status     string        `json:"status"`
    HighBid    int64         `json:"high_bid"`
    Leader     string        `json:"leader"`
    Deadline   time.Time     `json:"deadline"`
    ExtCount   int           `json:"ext_count"`
    Bids       []Bid         `json:"bids"`
    GoingOnce  bool          `json:"going_once"`
    GoingTwice bool          `json:"going_twice"`
    FinalCall  bool          `json:"final_call"`
    Paused     bool          `json:"paused"`
    Remaining  time.Duration `json:"remaining"`
}

// ResetMilestones clears the announcement flags so warnings fire again
// against a rescheduled deadline.
func (r *LotRuntime) ResetMilestones() {
    r.GoingOnce = false
    r.GoingTwice = false
    r.FinalCall = false
}

// LotResult is the closure report for one lot, appended to the session
// history when the lot ends.  Unsold lots carry no winners so that the
// coordinator can apply the provenance-dependent requeue policy.
type LotResult struct {
    Lot     Lot       `json:"lot"`
    Winners []Bid     `json:"winners"`
    EndedAt time.Time `json:"ended_at"`
}

// Sold reports whether the lot closed with at least one winner.
func (r LotResult) Sold() bool { return len(r.Winners) > 0 }
