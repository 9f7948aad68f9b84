package engine

import (
    "context"
    "time"

    "github.com/elysium/points-auction/internal/model"
    "github.com/elysium/points-auction/internal/queue"
)

// Store is the single persistence interface behind the engine.  The
// engine writes through it after every state-mutating operation so that
// a process restart can resume mid-session.  There is exactly one
// authoritative store; nothing else writes engine state.
type Store interface {
    // SaveQueue replaces the persisted pending-lot queue wholesale.
    SaveQueue(ctx context.Context, lots []model.Lot) error

    // SaveLocks replaces the persisted locked-points map wholesale.
    SaveLocks(ctx context.Context, locks map[string]int64) error

    // SaveRuntime persists the active lot's runtime state.  A nil
    // runtime clears the persisted row.
    SaveRuntime(ctx context.Context, rt *model.LotRuntime) error

    // SavePending replaces the persisted pending confirmations.
    SavePending(ctx context.Context, pending []model.PendingConfirmation) error

    // AppendBid appends one confirmed bid to the durable bid history.
    AppendBid(ctx context.Context, lotID string, bid model.Bid) error

    // SaveSession persists session metadata and completed-lot history.
    // A nil session clears both.
    SaveSession(ctx context.Context, s *model.Session) error

    // Load reads the full persisted snapshot for crash recovery.
    Load(ctx context.Context) (Snapshot, error)

    // Reset clears all in-flight auction state while preserving the
    // durable bid history.  Used when Load finds irreconcilable rows.
    Reset(ctx context.Context) error
}

// Snapshot is the durable engine state returned by Store.Load.
// Pending confirmations are deliberately absent: their timers cannot
// survive a restart, so proposals are dropped across restarts and the
// proposers simply bid again.
type Snapshot struct {
    Queue   []model.Lot
    Locks   map[string]int64
    Runtime *model.LotRuntime
    Session *model.Session
}

// Notifier is the outbound half of the confirmation channel: the engine
// emits state-change events through it and stays free of any knowledge
// of the presentation layer rendering them.
type Notifier interface {
    Publish(ctx context.Context, ev queue.Event) error
}

// Cooldown gates how often a member may propose a bid.  Allow reports
// whether the member may propose now; when it returns false the
// returned duration is how long the member must wait.
type Cooldown interface {
    Allow(ctx context.Context, member string) (time.Duration, bool)
}
