package engine

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "fmt"
    "log"
    "sync"
    "time"

    "github.com/elysium/points-auction/internal/config"
    "github.com/elysium/points-auction/internal/ledger"
    "github.com/elysium/points-auction/internal/model"
    "github.com/elysium/points-auction/internal/queue"
)

// Engine owns every piece of mutable auction state: the pending-lot
// queue, the active lot runtime, the locked-points map, the pending
// confirmations and the session record.  All mutation is routed through
// its methods under one mutex, so propose/confirm/cancel and every timer
// callback are short serialized critical sections.  Timer callbacks and
// ledger calls are the only suspension points, and ledger calls never
// hold the mutex.
type Engine struct {
    mu sync.Mutex

    cfg      config.AuctionConfig
    clock    Clock
    store    Store
    notify   Notifier
    cooldown Cooldown
    cache    *ledger.Cache
    api      ledger.API

    locks *LockManager

    queue   []model.Lot
    active  *model.LotRuntime
    pending map[string]*model.PendingConfirmation
    session *model.Session

    // starting guards against two session starts racing while the
    // ledger snapshot is still loading.  Cleared on every exit path.
    starting bool

    // Lot timers (milestones + end) carry a generation; rescheduling
    // bumps the generation and stale callbacks discard themselves.
    gen       uint64
    lotTimers []Timer

    // One expiry timer per pending confirmation, keyed by handle.
    expiry map[string]Timer

    refreshCancel context.CancelFunc
}

// New constructs an Engine.  The store, notifier and cooldown gate are
// required; pass NewStandardClock() outside tests.
func New(cfg config.AuctionConfig, store Store, notify Notifier, cooldown Cooldown, cache *ledger.Cache, api ledger.API, clk Clock) *Engine {
    e := &Engine{
        cfg:      cfg,
        clock:    clk,
        store:    store,
        notify:   notify,
        cooldown: cooldown,
        cache:    cache,
        api:      api,
        pending:  make(map[string]*model.PendingConfirmation),
        expiry:   make(map[string]Timer),
    }
    e.locks = NewLockManager(func(m map[string]int64) error {
        return store.SaveLocks(context.Background(), m)
    })
    return e
}

// Locks exposes the lock manager for read-side reporting.
func (e *Engine) Locks() *LockManager { return e.locks }

// Cache exposes the ledger snapshot for read-side reporting.
func (e *Engine) Cache() *ledger.Cache { return e.cache }

// Available returns how many points a member may still commit: the
// snapshot total minus their current holds, floored at zero.
func (e *Engine) Available(member string) int64 {
    avail := e.cache.Balance(member) - e.locks.Locked(member)
    if avail < 0 {
        return 0
    }
    return avail
}

// emit publishes an event, stamping the time.  Publish failures are
// logged; the engine never blocks or fails a bid because the broker is
// down.
func (e *Engine) emit(ev queue.Event) {
    ev.At = e.clock.Now().UTC().Format(time.RFC3339)
    if err := e.notify.Publish(context.Background(), ev); err != nil {
        log.Printf("engine: publish %s failed: %v", ev.Type, err)
    }
}

// persistQueue, persistRuntime and persistPending write the respective
// state through the store, logging failures.  The in-memory state stays
// authoritative for the running process.
func (e *Engine) persistQueue() {
    if err := e.store.SaveQueue(context.Background(), append([]model.Lot(nil), e.queue...)); err != nil {
        log.Printf("engine: persist queue failed: %v", err)
    }
}

func (e *Engine) persistRuntime() {
    var rt *model.LotRuntime
    if e.active != nil {
        cp := *e.active
        cp.Bids = append([]model.Bid(nil), e.active.Bids...)
        rt = &cp
    }
    if err := e.store.SaveRuntime(context.Background(), rt); err != nil {
        log.Printf("engine: persist runtime failed: %v", err)
    }
}

func (e *Engine) persistPending() {
    out := make([]model.PendingConfirmation, 0, len(e.pending))
    for _, p := range e.pending {
        out = append(out, *p)
    }
    if err := e.store.SavePending(context.Background(), out); err != nil {
        log.Printf("engine: persist pending failed: %v", err)
    }
}

func (e *Engine) persistSession() {
    var s *model.Session
    if e.session != nil {
        cp := *e.session
        cp.History = append([]model.LotResult(nil), e.session.History...)
        s = &cp
    }
    if err := e.store.SaveSession(context.Background(), s); err != nil {
        log.Printf("engine: persist session failed: %v", err)
    }
}

// newID returns a short random identifier with the given prefix, in the
// same shape the lot sheet uses ("a_<hex>").
func newID(prefix string) string {
    b := make([]byte, 6)
    if _, err := rand.Read(b); err != nil {
        // rand.Read does not fail on supported platforms
        return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
    }
    return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}
