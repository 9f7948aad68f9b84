package engine

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "sort"
    "strings"
    "time"

    "github.com/elysium/points-auction/internal/model"
    "github.com/elysium/points-auction/internal/queue"
)

// sessionStampLayout matches the timestamp format the ledger sheet
// expects alongside submitted results.
const sessionStampLayout = "01/02/06 15:04"

// StartSession begins driving the queued lots sequentially.  Exactly
// one session may run at a time; a second start while one is active or
// still starting fails with ErrSessionActive.  The ledger snapshot is
// loaded before any state is created and a load failure aborts the
// start entirely: no bidding without balances.
func (e *Engine) StartSession(ctx context.Context) error {
    e.mu.Lock()
    if e.session != nil || e.starting {
        e.mu.Unlock()
        return ErrSessionActive
    }
    if len(e.queue) == 0 {
        e.mu.Unlock()
        return fmt.Errorf("%w: queue is empty", ErrStateUnavailable)
    }
    e.starting = true
    e.mu.Unlock()

    // Guard released on every path below, including load failure, so a
    // crash during start cannot permanently wedge the coordinator.
    if err := e.cache.Load(ctx); err != nil {
        e.mu.Lock()
        e.starting = false
        e.mu.Unlock()
        return fmt.Errorf("%w: balance load: %v", ErrExternalService, err)
    }

    e.mu.Lock()
    defer e.mu.Unlock()
    e.starting = false
    if e.session != nil {
        return ErrSessionActive
    }
    now := e.clock.Now()
    e.session = &model.Session{
        Timestamp: now.Format(sessionStampLayout),
        StartedAt: now,
    }
    e.persistSession()

    refreshCtx, cancel := context.WithCancel(context.Background())
    e.refreshCancel = cancel
    e.cache.StartRefresh(refreshCtx, e.cfg.CacheRefresh)

    e.emit(queue.Event{
        Type:             queue.EventSessionStarted,
        QueueLeft:        len(e.queue),
        SessionTimestamp: e.session.Timestamp,
    })

    e.lotTimers = append(e.lotTimers, e.clock.AfterFunc(e.cfg.InterLotDelay, func() {
        e.mu.Lock()
        defer e.mu.Unlock()
        e.startNextLot()
    }))
    return nil
}

// PauseSession suspends the active countdown, preserving the remaining
// time and canceling all lot timers.
func (e *Engine) PauseSession() error {
    e.mu.Lock()
    defer e.mu.Unlock()
    if e.session == nil || e.active == nil || e.active.Status != model.LotActive || e.active.Paused {
        return ErrStateUnavailable
    }
    rt := e.active
    rt.Paused = true
    rt.Remaining = rt.Deadline.Sub(e.clock.Now())
    if rt.Remaining < 0 {
        rt.Remaining = 0
    }
    e.cancelLotTimers()
    e.gen++
    e.persistRuntime()
    e.emit(queue.Event{
        Type:     queue.EventSessionPaused,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        TimeLeft: int64(rt.Remaining / time.Second),
    })
    return nil
}

// ResumeSession recomputes the deadline as now plus the preserved
// remaining time, floored so a resume never drops straight into the
// snipe window, and recreates the lot timers.
func (e *Engine) ResumeSession() error {
    e.mu.Lock()
    defer e.mu.Unlock()
    if e.session == nil || e.active == nil || !e.active.Paused {
        return ErrStateUnavailable
    }
    rt := e.active
    remaining := rt.Remaining
    if remaining < e.cfg.ResumeFloor {
        remaining = e.cfg.ResumeFloor
    }
    rt.Paused = false
    rt.Remaining = 0
    rt.Deadline = e.clock.Now().Add(remaining)
    e.persistRuntime()
    e.scheduleLotTimers()
    e.emit(queue.Event{
        Type:     queue.EventSessionResumed,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        TimeLeft: int64(remaining / time.Second),
    })
    return nil
}

// finalizeLocked aggregates the session's spend, clears every piece of
// in-flight state, and submits the result set to the ledger.  State is
// cleared regardless of submission success so stale locks never outlive
// the session; a submission failure is logged with the full result set
// for manual entry and announced on the event queue.  Caller holds the
// mutex; it is released before the ledger call and not reacquired.
func (e *Engine) finalizeLocked() {
    s := e.session
    results := e.buildResults()
    stamp := s.Timestamp
    sold := 0
    for _, r := range s.History {
        if r.Sold() {
            sold++
        }
    }

    // Unsold catalog lots return to the queue for the next session;
    // manual lots are only part of the logged history.
    if e.cfg.RequeueUnsoldCatalog {
        for _, r := range s.History {
            if !r.Sold() && r.Lot.Source == model.SourceCatalog {
                e.queue = append(e.queue, r.Lot)
            }
        }
    }

    e.session = nil
    e.active = nil
    e.cancelLotTimers()
    e.gen++
    for handle := range e.pending {
        e.dropPending(handle)
    }
    e.locks.Clear()
    e.cache.Clear()
    if e.refreshCancel != nil {
        e.refreshCancel()
        e.refreshCancel = nil
    }
    e.persistQueue()
    e.persistRuntime()
    e.persistPending()
    e.persistSession()
    e.mu.Unlock()

    if sold == 0 {
        log.Printf("session %s: nothing sold, skipping ledger submission", stamp)
        e.emit(queue.Event{Type: queue.EventSessionFinalized, SessionTimestamp: stamp})
        return
    }

    if err := e.api.SubmitResults(context.Background(), results, stamp); err != nil {
        raw, _ := json.Marshal(results)
        log.Printf("session %s: ledger submission failed after retries: %v", stamp, err)
        log.Printf("session %s: results for manual entry: %s", stamp, raw)
        e.emit(queue.Event{Type: queue.EventSubmitFailed, SessionTimestamp: stamp})
        return
    }
    log.Printf("session %s: results submitted (%d members)", stamp, len(results))
    e.emit(queue.Event{Type: queue.EventSessionFinalized, SessionTimestamp: stamp})
}

// buildResults produces one row per member known to the ledger
// snapshot: their summed winning amounts across the session's sold
// lots, zero for everyone else, sorted by name for a stable record.
// Winner names are matched case-insensitively against the snapshot.
// Caller holds the mutex.
func (e *Engine) buildResults() []model.MemberResult {
    spent := make(map[string]int64)
    for _, r := range e.session.History {
        for _, w := range r.Winners {
            spent[strings.ToLower(strings.TrimSpace(w.Member))] += w.Amount
        }
    }
    members := e.cache.Members()
    sort.Strings(members)
    results := make([]model.MemberResult, 0, len(members))
    for _, m := range members {
        results = append(results, model.MemberResult{
            Member:     m,
            TotalSpent: spent[strings.ToLower(strings.TrimSpace(m))],
        })
    }
    return results
}

// StatusReport is a point-in-time view of the coordinator for the
// presentation layer.
type StatusReport struct {
    SessionActive    bool              `json:"session_active"`
    SessionTimestamp string            `json:"session_timestamp,omitempty"`
    LotsSold         int               `json:"lots_sold"`
    QueueLeft        int               `json:"queue_left"`
    Active           *model.LotRuntime `json:"active,omitempty"`
    TimeLeft         int64             `json:"time_left_secs,omitempty"`
    PendingProposals int               `json:"pending_proposals"`
}

// Status returns a snapshot of the running session and active lot.
func (e *Engine) Status() StatusReport {
    e.mu.Lock()
    defer e.mu.Unlock()
    rep := StatusReport{
        QueueLeft:        len(e.queue),
        PendingProposals: len(e.pending),
    }
    if e.session != nil {
        rep.SessionActive = true
        rep.SessionTimestamp = e.session.Timestamp
        for _, r := range e.session.History {
            if r.Sold() {
                rep.LotsSold++
            }
        }
    }
    if e.active != nil {
        cp := *e.active
        cp.Bids = append([]model.Bid(nil), e.active.Bids...)
        rep.Active = &cp
        if cp.Status == model.LotActive && !cp.Paused {
            left := cp.Deadline.Sub(e.clock.Now())
            if left > 0 {
                rep.TimeLeft = int64(left / time.Second)
            }
        } else if cp.Paused {
            rep.TimeLeft = int64(cp.Remaining / time.Second)
        }
    }
    return rep
}

// Recover reloads the durable snapshot at startup and resumes a
// session that was cut off mid-flight.  An active lot has its timers
// rescheduled against the persisted deadline, or closes immediately
// when that deadline already passed, rather than restarting its
// countdown.  Pending confirmations are not restored: their timers
// cannot survive a restart, so proposers bid again.  Corrupt state is
// resolved by a safe reset that keeps the durable bid history.
func (e *Engine) Recover(ctx context.Context) error {
    snap, err := e.store.Load(ctx)
    if err != nil {
        if errors.Is(err, ErrStateCorruption) {
            log.Printf("recovery: %v; resetting in-flight state", err)
            if resetErr := e.store.Reset(ctx); resetErr != nil {
                return resetErr
            }
            return nil
        }
        return err
    }

    e.mu.Lock()
    defer e.mu.Unlock()
    e.queue = snap.Queue
    e.locks.Restore(snap.Locks)
    e.session = snap.Session

    if snap.Session != nil {
        // Balances are required for any further bidding; a failed load
        // here leaves the cache empty and every proposal rejected until
        // the periodic refresh succeeds.
        if err := e.cache.Load(ctx); err != nil {
            log.Printf("recovery: balance load failed: %v", err)
        }
        refreshCtx, cancel := context.WithCancel(context.Background())
        e.refreshCancel = cancel
        e.cache.StartRefresh(refreshCtx, e.cfg.CacheRefresh)
    }

    rt := snap.Runtime
    if rt == nil {
        if e.session != nil {
            log.Printf("recovery: session %s resumed with %d lots queued", e.session.Timestamp, len(e.queue))
            e.scheduleAdvance()
        }
        return nil
    }
    if e.session == nil {
        // A runtime without a session cannot be reconstructed.
        log.Printf("recovery: %v: active lot %q without a session; resetting", ErrStateCorruption, rt.Lot.ID)
        return e.store.Reset(ctx)
    }

    e.active = rt
    switch rt.Status {
    case model.LotPreview:
        e.schedulePreview(rt.Lot.ID)
    case model.LotActive:
        if rt.Paused {
            log.Printf("recovery: lot %q restored paused with %s remaining", rt.Lot.Item, rt.Remaining)
            return nil
        }
        if !rt.Deadline.After(e.clock.Now()) {
            log.Printf("recovery: lot %q deadline passed while down; closing", rt.Lot.Item)
            e.closeActiveLot()
            return nil
        }
        e.scheduleLotTimers()
        log.Printf("recovery: lot %q resumed, %s to deadline", rt.Lot.Item, rt.Deadline.Sub(e.clock.Now()).Round(time.Second))
    default:
        // An ended lot should have been cleared at close.
        e.active = nil
        e.scheduleAdvance()
    }
    return nil
}
