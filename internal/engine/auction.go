package engine

import (
    "fmt"
    "sort"
    "strings"
    "time"

    "github.com/elysium/points-auction/internal/model"
    "github.com/elysium/points-auction/internal/queue"
)

// Milestone announcement offsets before the deadline, largest first.
const (
    goingOnceOffset  = 60 * time.Second
    goingTwiceOffset = 30 * time.Second
    finalCallOffset  = 10 * time.Second
)

// startNextLot pops the head of the queue into preview.  Caller holds
// the mutex; no-op when no session is running, a lot is already being
// driven, or the queue is empty.
func (e *Engine) startNextLot() {
    if e.session == nil || e.active != nil || len(e.queue) == 0 {
        return
    }
    lot := e.queue[0]
    e.queue = e.queue[1:]
    e.active = &model.LotRuntime{
        Lot:     lot,
        Status:  model.LotPreview,
        HighBid: lot.StartPrice,
    }
    e.persistQueue()
    e.persistRuntime()
    e.emit(queue.Event{
        Type:      queue.EventLotPreview,
        LotID:     lot.ID,
        Item:      lot.Item,
        Quantity:  lot.Quantity,
        HighBid:   lot.StartPrice,
        TimeLeft:  int64(lot.Duration / time.Second),
        QueueLeft: len(e.queue),
    })
    e.schedulePreview(lot.ID)
}

// schedulePreview arms the preview→active transition.  The lot ID pins
// the callback to this activation; a forced close during preview leaves
// the callback a no-op.
func (e *Engine) schedulePreview(lotID string) {
    e.lotTimers = append(e.lotTimers, e.clock.AfterFunc(e.cfg.PreviewDelay, func() {
        e.mu.Lock()
        defer e.mu.Unlock()
        if e.active == nil || e.active.Lot.ID != lotID || e.active.Status != model.LotPreview {
            return
        }
        e.activateLot()
    }))
}

// activateLot opens bidding: sets the deadline and arms the milestone
// and end timers.  Caller holds the mutex.
func (e *Engine) activateLot() {
    rt := e.active
    rt.Status = model.LotActive
    rt.Deadline = e.clock.Now().Add(rt.Lot.Duration)
    e.persistRuntime()
    e.emit(queue.Event{
        Type:     queue.EventLotActive,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        Quantity: rt.Lot.Quantity,
        HighBid:  rt.HighBid,
        TimeLeft: int64(rt.Lot.Duration / time.Second),
    })
    e.scheduleLotTimers()
}

// scheduleLotTimers cancels and recreates all four lot timers (three
// milestones plus the end timer) against the current deadline.  Each
// callback captures the new generation; callbacks from a previous
// schedule see a stale generation and discard themselves, which is what
// makes extension and pause/resume safe against dangling timers.
// Caller holds the mutex.
func (e *Engine) scheduleLotTimers() {
    e.cancelLotTimers()
    e.gen++
    gen := e.gen
    rt := e.active
    remaining := rt.Deadline.Sub(e.clock.Now())

    type milestone struct {
        offset time.Duration
        fired  bool
        evType string
    }
    for _, m := range []milestone{
        {goingOnceOffset, rt.GoingOnce, queue.EventGoingOnce},
        {goingTwiceOffset, rt.GoingTwice, queue.EventGoingTwice},
        {finalCallOffset, rt.FinalCall, queue.EventFinalCall},
    } {
        if m.fired || remaining <= m.offset {
            continue
        }
        evType := m.evType
        e.lotTimers = append(e.lotTimers, e.clock.AfterFunc(remaining-m.offset, func() {
            e.fireMilestone(gen, evType)
        }))
    }
    e.lotTimers = append(e.lotTimers, e.clock.AfterFunc(remaining, func() {
        e.fireEnd(gen)
    }))
}

// cancelLotTimers stops every armed lot timer.  Caller holds the mutex.
func (e *Engine) cancelLotTimers() {
    for _, t := range e.lotTimers {
        t.Stop()
    }
    e.lotTimers = nil
}

// fireMilestone runs one of the three escalating announcements.  The
// idempotency flag guards against a double fire when a timer squeaks in
// between an extension and the reschedule.
func (e *Engine) fireMilestone(gen uint64, evType string) {
    e.mu.Lock()
    defer e.mu.Unlock()
    if gen != e.gen || e.active == nil || e.active.Status != model.LotActive || e.active.Paused {
        return
    }
    rt := e.active
    switch evType {
    case queue.EventGoingOnce:
        if rt.GoingOnce {
            return
        }
        rt.GoingOnce = true
    case queue.EventGoingTwice:
        if rt.GoingTwice {
            return
        }
        rt.GoingTwice = true
    case queue.EventFinalCall:
        if rt.FinalCall {
            return
        }
        rt.FinalCall = true
    }
    e.persistRuntime()
    e.emit(queue.Event{
        Type:     evType,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        HighBid:  rt.HighBid,
        Leader:   rt.Leader,
        TimeLeft: int64(rt.Deadline.Sub(e.clock.Now()) / time.Second),
    })
}

// fireEnd closes the lot when the deadline timer goes off.
func (e *Engine) fireEnd(gen uint64) {
    e.mu.Lock()
    defer e.mu.Unlock()
    if gen != e.gen || e.active == nil || e.active.Status != model.LotActive || e.active.Paused {
        return
    }
    e.closeActiveLot()
}

// StopCurrentLot force-closes the lot being driven, regardless of the
// time remaining.  Administrative operation.
func (e *Engine) StopCurrentLot() error {
    e.mu.Lock()
    defer e.mu.Unlock()
    if e.active == nil {
        return ErrStateUnavailable
    }
    e.cancelLotTimers()
    e.gen++
    e.closeActiveLot()
    return nil
}

// ExtendCurrentLot pushes the active deadline out by d and reschedules,
// resetting the milestone flags so the warnings fire again.  Manual
// counterpart of the anti-snipe extension; does not count against the
// extension cap.
func (e *Engine) ExtendCurrentLot(d time.Duration) error {
    if d <= 0 {
        return fmt.Errorf("%w: non-positive extension", ErrValidation)
    }
    e.mu.Lock()
    defer e.mu.Unlock()
    if e.active == nil || e.active.Status != model.LotActive || e.active.Paused {
        return ErrStateUnavailable
    }
    rt := e.active
    rt.Deadline = rt.Deadline.Add(d)
    rt.ResetMilestones()
    e.persistRuntime()
    e.scheduleLotTimers()
    e.emit(queue.Event{
        Type:     queue.EventLotExtended,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        ExtCount: rt.ExtCount,
        TimeLeft: int64(rt.Deadline.Sub(e.clock.Now()) / time.Second),
    })
    return nil
}

// closeActiveLot transitions the lot to ended, determines winner(s),
// records the result and schedules the next step of the session.
// Caller holds the mutex.
func (e *Engine) closeActiveLot() {
    rt := e.active
    rt.Status = model.LotEnded
    winners := lotWinners(rt)
    result := model.LotResult{
        Lot:     rt.Lot,
        Winners: winners,
        EndedAt: e.clock.Now(),
    }
    if e.session != nil {
        e.session.History = append(e.session.History, result)
    }

    // Drop proposals that were still pending against this lot.  No lock
    // mutation: none was made at propose time.
    for handle, p := range e.pending {
        if p.LotID == rt.Lot.ID {
            e.dropPending(handle)
        }
    }

    if result.Sold() {
        evWinners := make([]queue.Winner, 0, len(winners))
        for _, w := range winners {
            evWinners = append(evWinners, queue.Winner{Member: w.Member, Amount: w.Amount})
        }
        e.emit(queue.Event{
            Type:      queue.EventLotSold,
            LotID:     rt.Lot.ID,
            Item:      rt.Lot.Item,
            Quantity:  rt.Lot.Quantity,
            Winners:   evWinners,
            QueueLeft: len(e.queue),
        })
    } else {
        e.emit(queue.Event{
            Type:      queue.EventLotNoBids,
            LotID:     rt.Lot.ID,
            Item:      rt.Lot.Item,
            QueueLeft: len(e.queue),
        })
    }

    e.active = nil
    e.persistRuntime()
    e.persistSession()
    e.scheduleAdvance()
}

// scheduleAdvance arms the inter-lot delay after which the coordinator
// either drives the next lot or finalizes the session.  Caller holds
// the mutex.
func (e *Engine) scheduleAdvance() {
    if e.session == nil {
        return
    }
    e.lotTimers = append(e.lotTimers, e.clock.AfterFunc(e.cfg.InterLotDelay, func() {
        e.mu.Lock()
        if e.session == nil || e.active != nil {
            e.mu.Unlock()
            return
        }
        if len(e.queue) > 0 {
            e.startNextLot()
            e.mu.Unlock()
            return
        }
        e.finalizeLocked()
    }))
}

// lotWinners determines the winning bids for a closed lot.  Single lots
// award the current leader at the high bid.  Batch lots rank each
// bidder's highest confirmed bid by amount descending, breaking ties by
// earliest confirmation, and award the top K at their own amounts.
func lotWinners(rt *model.LotRuntime) []model.Bid {
    if !rt.Lot.Batch() {
        if rt.Leader == "" {
            return nil
        }
        return []model.Bid{{Member: rt.Leader, Amount: rt.HighBid, PlacedAt: lastBidTime(rt)}}
    }
    best := make(map[string]model.Bid)
    order := make([]string, 0, len(rt.Bids))
    for _, b := range rt.Bids {
        key := strings.ToLower(b.Member)
        prev, seen := best[key]
        if !seen {
            order = append(order, key)
        }
        if !seen || b.Amount > prev.Amount {
            best[key] = b
        }
    }
    ranked := make([]model.Bid, 0, len(order))
    for _, key := range order {
        ranked = append(ranked, best[key])
    }
    sort.SliceStable(ranked, func(i, j int) bool {
        if ranked[i].Amount != ranked[j].Amount {
            return ranked[i].Amount > ranked[j].Amount
        }
        return ranked[i].PlacedAt.Before(ranked[j].PlacedAt)
    })
    if len(ranked) > rt.Lot.Quantity {
        ranked = ranked[:rt.Lot.Quantity]
    }
    return ranked
}

// lotHold reports the points a member has locked against this lot:
// their standing winning bid, or zero when they hold no winning
// position.  Holds carried from earlier lots in the session are not
// counted, so a raise on the current lot only needs the delta above
// this lot's own hold.
func lotHold(rt *model.LotRuntime, member string) int64 {
    if !rt.Lot.Batch() {
        if rt.Leader != "" && strings.EqualFold(rt.Leader, member) {
            return rt.HighBid
        }
        return 0
    }
    for _, b := range lotWinners(rt) {
        if strings.EqualFold(b.Member, member) {
            return b.Amount
        }
    }
    return 0
}

// holdsPosition reports whether member appears in the winning set.
func holdsPosition(winners []model.Bid, member string) bool {
    for _, b := range winners {
        if strings.EqualFold(b.Member, member) {
            return true
        }
    }
    return false
}

func lastBidTime(rt *model.LotRuntime) time.Time {
    if n := len(rt.Bids); n > 0 {
        return rt.Bids[n-1].PlacedAt
    }
    return rt.Deadline
}
