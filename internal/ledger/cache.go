package ledger

import (
    "context"
    "log"
    "strings"
    "sync"
    "time"
)

// Cache holds a snapshot of every member's total point balance, taken
// from the ledger once at session start and refreshed on a fixed
// interval while the session runs.  The snapshot is immutable once
// taken; a refresh replaces it wholesale.  The bidding path only reads.
type Cache struct {
    mu      sync.RWMutex
    api     API
    points  map[string]int64
    takenAt time.Time
}

// NewCache returns an empty cache backed by the given ledger API.
func NewCache(api API) *Cache {
    return &Cache{api: api}
}

// Load fetches a fresh snapshot and replaces the cached one.  A failed
// load leaves the previous snapshot in place and returns the error;
// callers at session start treat that as fatal (no bidding without a
// balance snapshot).
func (c *Cache) Load(ctx context.Context) error {
    start := time.Now()
    points, err := c.api.GetBalances(ctx)
    if err != nil {
        return err
    }
    c.mu.Lock()
    c.points = points
    c.takenAt = time.Now()
    c.mu.Unlock()
    log.Printf("ledger cache: loaded %d members in %s", len(points), time.Since(start).Round(time.Millisecond))
    return nil
}

// Loaded reports whether a snapshot is present.
func (c *Cache) Loaded() bool {
    c.mu.RLock()
    defer c.mu.RUnlock()
    return c.points != nil
}

// Balance returns the snapshot total for a member, 0 if unknown.  An
// exact match is tried first, then a case-insensitive scan, because the
// ledger sheet and the identity tokens do not always agree on casing.
func (c *Cache) Balance(member string) int64 {
    c.mu.RLock()
    defer c.mu.RUnlock()
    if c.points == nil {
        return 0
    }
    if pts, ok := c.points[member]; ok {
        return pts
    }
    lower := strings.ToLower(member)
    for name, pts := range c.points {
        if strings.ToLower(name) == lower {
            return pts
        }
    }
    return 0
}

// Members returns every member name in the snapshot.
func (c *Cache) Members() []string {
    c.mu.RLock()
    defer c.mu.RUnlock()
    out := make([]string, 0, len(c.points))
    for name := range c.points {
        out = append(out, name)
    }
    return out
}

// TakenAt returns when the current snapshot was captured.
func (c *Cache) TakenAt() time.Time {
    c.mu.RLock()
    defer c.mu.RUnlock()
    return c.takenAt
}

// Clear drops the snapshot.  Called at session finalization.
func (c *Cache) Clear() {
    c.mu.Lock()
    c.points = nil
    c.takenAt = time.Time{}
    c.mu.Unlock()
}

// StartRefresh refreshes the snapshot every interval until ctx is
// canceled.  Refresh failures are logged and the stale snapshot is kept;
// the next tick tries again.
func (c *Cache) StartRefresh(ctx context.Context, every time.Duration) {
    go func() {
        ticker := time.NewTicker(every)
        defer ticker.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-ticker.C:
                if err := c.Load(ctx); err != nil {
                    log.Printf("ledger cache: refresh failed: %v", err)
                }
            }
        }
    }()
}
