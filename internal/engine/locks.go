package engine

import (
    "log"
    "sync"
)

// LockManager tracks points reserved by unresolved or winning bids per
// member.  It is the sole mutator of the locked-points map: the bid
// protocol locks on confirm, unlocks the displaced leader, and the
// coordinator clears everything at session end.  Every mutation is
// written through the persist hook before the method returns.
type LockManager struct {
    mu      sync.Mutex
    locked  map[string]int64
    persist func(map[string]int64) error
}

// NewLockManager returns a LockManager that writes every mutation
// through persist.  A nil persist hook disables persistence (tests).
func NewLockManager(persist func(map[string]int64) error) *LockManager {
    return &LockManager{
        locked:  make(map[string]int64),
        persist: persist,
    }
}

// Lock reserves amount additional points for member.
func (lm *LockManager) Lock(member string, amount int64) {
    lm.mu.Lock()
    defer lm.mu.Unlock()
    lm.locked[member] += amount
    lm.save()
}

// Unlock releases up to amount reserved points for member.  The hold
// never goes negative and an entry reaching zero is removed.
func (lm *LockManager) Unlock(member string, amount int64) {
    lm.mu.Lock()
    defer lm.mu.Unlock()
    next := lm.locked[member] - amount
    if next <= 0 {
        delete(lm.locked, member)
    } else {
        lm.locked[member] = next
    }
    lm.save()
}

// Locked returns the points currently reserved for member.
func (lm *LockManager) Locked(member string) int64 {
    lm.mu.Lock()
    defer lm.mu.Unlock()
    return lm.locked[member]
}

// Clear drops every hold.  Called at session finalization so that locks
// never outlive the session, regardless of submission success.
func (lm *LockManager) Clear() {
    lm.mu.Lock()
    defer lm.mu.Unlock()
    lm.locked = make(map[string]int64)
    lm.save()
}

// Restore replaces the map wholesale from a recovered snapshot without
// writing back through the persist hook.
func (lm *LockManager) Restore(locks map[string]int64) {
    lm.mu.Lock()
    defer lm.mu.Unlock()
    lm.locked = make(map[string]int64, len(locks))
    for m, n := range locks {
        if n > 0 {
            lm.locked[m] = n
        }
    }
}

// Copy returns a snapshot of the current holds.
func (lm *LockManager) Copy() map[string]int64 {
    lm.mu.Lock()
    defer lm.mu.Unlock()
    out := make(map[string]int64, len(lm.locked))
    for m, n := range lm.locked {
        out[m] = n
    }
    return out
}

// save writes the current map through the persist hook.  Must be called
// with the mutex held.  Persistence failures are logged rather than
// unwinding the in-memory mutation; the in-memory state stays the
// authority for the running process.
func (lm *LockManager) save() {
    if lm.persist == nil {
        return
    }
    out := make(map[string]int64, len(lm.locked))
    for m, n := range lm.locked {
        out[m] = n
    }
    if err := lm.persist(out); err != nil {
        log.Printf("locks: persist failed: %v", err)
    }
}
