package engine

import (
    "context"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/elysium/points-auction/internal/model"
    "github.com/elysium/points-auction/internal/queue"
)

// Propose opens a two-phase bid: it validates the attempt against the
// active lot and the member's available points, creates a
// PendingConfirmation with an expiry, and notifies the caller to
// confirm or cancel.  No points are locked here; a proposal that
// expires or is canceled unwinds with no side effects.
func (e *Engine) Propose(ctx context.Context, m model.Member, amount int64) (model.PendingConfirmation, error) {
    e.mu.Lock()
    defer e.mu.Unlock()

    if e.active == nil || e.active.Status != model.LotActive || e.active.Paused {
        return model.PendingConfirmation{}, ErrStateUnavailable
    }
    if amount <= 0 {
        return model.PendingConfirmation{}, fmt.Errorf("%w: amount must be a positive integer", ErrValidation)
    }
    rt := e.active
    // Strictly greater: a tie never displaces the leader.
    if amount <= rt.HighBid {
        return model.PendingConfirmation{}, fmt.Errorf("%w: bid must exceed %d", ErrValidation, rt.HighBid)
    }

    total := e.cache.Balance(m.Name)
    if total == 0 {
        return model.PendingConfirmation{}, fmt.Errorf("%w: no points on record", ErrInsufficientFunds)
    }
    // A member holding a winning position on this lot reuses that hold
    // rather than releasing and reacquiring it, so only the delta above
    // it must be newly available.
    hold := lotHold(rt, m.Name)
    selfRaise := hold > 0
    needed := amount - hold
    if needed < 0 {
        needed = 0
    }
    if avail := e.Available(m.Name); needed > avail {
        return model.PendingConfirmation{}, fmt.Errorf(
            "%w: need %d, available %d (total %d, locked %d)",
            ErrInsufficientFunds, needed, avail, total, e.locks.Locked(m.Name))
    }

    // The cooldown is the last gate so a rejected attempt does not eat
    // the member's window.
    if wait, ok := e.cooldown.Allow(ctx, m.Name); !ok {
        return model.PendingConfirmation{}, &RateLimitError{Wait: wait}
    }

    now := e.clock.Now()
    p := &model.PendingConfirmation{
        Handle:    newID("c"),
        Member:    m.Name,
        LotID:     rt.Lot.ID,
        Amount:    amount,
        Needed:    needed,
        SelfRaise: selfRaise,
        CreatedAt: now,
        ExpiresAt: now.Add(e.cfg.ConfirmTimeout),
    }
    e.pending[p.Handle] = p
    e.persistPending()

    handle := p.Handle
    e.expiry[handle] = e.clock.AfterFunc(e.cfg.ConfirmTimeout, func() {
        e.expireProposal(handle)
    })

    e.emit(queue.Event{
        Type:     queue.EventBidPending,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        Member:   p.Member,
        Amount:   p.Amount,
        Handle:   p.Handle,
        HighBid:  rt.HighBid,
        TimeLeft: int64(e.cfg.ConfirmTimeout / time.Second),
    })
    return *p, nil
}

// Confirm resolves a pending proposal into a confirmed bid.  The
// confirming identity must be the proposer or an administrative
// override.  Among competing proposals for the same lot the highest
// amount wins regardless of confirmation order: confirming while a
// strictly higher proposal is still pending loses the race immediately
// and mutates no locks.
func (e *Engine) Confirm(ctx context.Context, handle string, ident model.Member) (model.LotRuntime, error) {
    e.mu.Lock()
    defer e.mu.Unlock()

    p, ok := e.pending[handle]
    if !ok {
        return model.LotRuntime{}, fmt.Errorf("%w: unknown or expired confirmation", ErrNotFound)
    }
    if !strings.EqualFold(p.Member, ident.Name) && !ident.IsAdmin() {
        return model.LotRuntime{}, ErrForbidden
    }
    rt := e.active
    if rt == nil || rt.Status != model.LotActive || rt.Lot.ID != p.LotID || rt.Paused {
        e.dropPending(handle)
        e.persistPending()
        return model.LotRuntime{}, ErrStateUnavailable
    }
    // Another bid won the race while this one sat unconfirmed.
    if p.Amount <= rt.HighBid {
        e.dropPending(handle)
        e.persistPending()
        e.emitRaceLost(p)
        return model.LotRuntime{}, fmt.Errorf("%w: current high bid is %d", ErrRaceLost, rt.HighBid)
    }
    // Highest pending amount wins, not first to confirm.  A member's
    // own higher proposal never races their lower one.
    for _, other := range e.pending {
        if other.Handle != handle && other.LotID == p.LotID && other.Amount > p.Amount &&
            !strings.EqualFold(other.Member, p.Member) {
            e.dropPending(handle)
            e.persistPending()
            e.emitRaceLost(p)
            return model.LotRuntime{}, fmt.Errorf("%w: a %d proposal is pending", ErrRaceLost, other.Amount)
        }
    }

    // The standings may have changed since propose time; re-derive the
    // member's current hold on this lot and re-check availability so a
    // confirm can never push their holds past the snapshot balance.
    hold := lotHold(rt, p.Member)
    selfRaise := hold > 0
    needed := p.Amount - hold
    if needed < 0 {
        needed = 0
    }
    if avail := e.Available(p.Member); needed > avail {
        e.dropPending(handle)
        e.persistPending()
        return model.LotRuntime{}, fmt.Errorf("%w: need %d, available %d", ErrInsufficientFunds, needed, avail)
    }

    // A hold is released only when its owner loses their winning
    // position: the displaced leader on a single lot, or anyone pushed
    // out of the top K on a batch lot.  A batch bidder who loses the
    // lead but still sits in the top K keeps their hold, since their
    // bid still wins at close.
    bid := model.Bid{Member: p.Member, Amount: p.Amount, PlacedAt: e.clock.Now()}
    var displaced []model.Bid
    if rt.Lot.Batch() {
        before := lotWinners(rt)
        rt.Bids = append(rt.Bids, bid)
        rt.HighBid = p.Amount
        rt.Leader = p.Member
        after := lotWinners(rt)
        for _, b := range before {
            if !holdsPosition(after, b.Member) {
                displaced = append(displaced, b)
            }
        }
    } else {
        if rt.Leader != "" && !selfRaise {
            displaced = append(displaced, model.Bid{Member: rt.Leader, Amount: rt.HighBid})
        }
        rt.Bids = append(rt.Bids, bid)
        rt.HighBid = p.Amount
        rt.Leader = p.Member
    }
    e.locks.Lock(p.Member, needed)
    for _, d := range displaced {
        e.locks.Unlock(d.Member, d.Amount)
        e.emit(queue.Event{
            Type:    queue.EventBidOutbid,
            LotID:   rt.Lot.ID,
            Item:    rt.Lot.Item,
            Member:  d.Member,
            Amount:  p.Amount,
            HighBid: p.Amount,
        })
    }

    if err := e.store.AppendBid(context.Background(), rt.Lot.ID, bid); err != nil {
        log.Printf("engine: persist bid failed: %v", err)
    }
    e.dropPending(handle)
    e.persistPending()

    e.maybeExtend()
    e.persistRuntime()

    e.emit(queue.Event{
        Type:     queue.EventBidConfirmed,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        Member:   bid.Member,
        Amount:   bid.Amount,
        HighBid:  rt.HighBid,
        Leader:   rt.Leader,
        TimeLeft: int64(rt.Deadline.Sub(e.clock.Now()) / time.Second),
        ExtCount: rt.ExtCount,
    })
    cp := *rt
    cp.Bids = append([]model.Bid(nil), rt.Bids...)
    return cp, nil
}

// Cancel discards a pending proposal.  Only the proposer or an admin
// may cancel; nothing was locked, so nothing unwinds.
func (e *Engine) Cancel(ctx context.Context, handle string, ident model.Member) error {
    e.mu.Lock()
    defer e.mu.Unlock()
    p, ok := e.pending[handle]
    if !ok {
        return fmt.Errorf("%w: unknown or expired confirmation", ErrNotFound)
    }
    if !strings.EqualFold(p.Member, ident.Name) && !ident.IsAdmin() {
        return ErrForbidden
    }
    e.dropPending(handle)
    e.persistPending()
    return nil
}

// expireProposal is the confirmation-timeout callback.
func (e *Engine) expireProposal(handle string) {
    e.mu.Lock()
    defer e.mu.Unlock()
    p, ok := e.pending[handle]
    if !ok {
        return
    }
    e.dropPending(handle)
    e.persistPending()
    e.emit(queue.Event{
        Type:   queue.EventBidExpired,
        LotID:  p.LotID,
        Member: p.Member,
        Amount: p.Amount,
        Handle: p.Handle,
    })
}

// dropPending removes one proposal and stops its expiry timer.  Caller
// holds the mutex and is responsible for persisting afterwards.
func (e *Engine) dropPending(handle string) {
    delete(e.pending, handle)
    if t, ok := e.expiry[handle]; ok {
        t.Stop()
        delete(e.expiry, handle)
    }
}

func (e *Engine) emitRaceLost(p *model.PendingConfirmation) {
    e.emit(queue.Event{
        Type:   queue.EventBidRaceLost,
        LotID:  p.LotID,
        Member: p.Member,
        Amount: p.Amount,
        Handle: p.Handle,
    })
}

// maybeExtend applies the anti-snipe rule after a confirmed bid: when
// the confirm lands inside the snipe window and the cap has room, the
// deadline moves out one step, the milestone flags reset so warnings
// fire again, and all lot timers are rescheduled.  Returns whether an
// extension happened.  Caller holds the mutex.
func (e *Engine) maybeExtend() bool {
    rt := e.active
    remaining := rt.Deadline.Sub(e.clock.Now())
    if remaining >= e.cfg.SnipeWindow || rt.ExtCount >= e.cfg.MaxExtensions {
        return false
    }
    rt.Deadline = rt.Deadline.Add(e.cfg.ExtensionStep)
    rt.ExtCount++
    rt.ResetMilestones()
    e.scheduleLotTimers()
    e.emit(queue.Event{
        Type:     queue.EventLotExtended,
        LotID:    rt.Lot.ID,
        Item:     rt.Lot.Item,
        ExtCount: rt.ExtCount,
        TimeLeft: int64(rt.Deadline.Sub(e.clock.Now()) / time.Second),
    })
    return true
}
