package service

import (
    "context"
    "log"
    "strings"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/elysium/points-auction/internal/config"
)

// RedisCooldown gates bid proposals per member through a Redis key with
// the cooldown window as its TTL: SET NX marks the window atomically,
// so check and mark cannot race.  It implements engine.Cooldown.
type RedisCooldown struct {
    cfg config.CooldownConfig
    rdb *redis.Client
}

// NewRedisCooldown returns a Redis-backed cooldown gate.
func NewRedisCooldown(cfg config.CooldownConfig, rdb *redis.Client) *RedisCooldown {
    return &RedisCooldown{cfg: cfg, rdb: rdb}
}

// Allow reports whether the member may propose now and, when not, how
// long they must wait.  Redis errors fail open: a broken limiter must
// not block the auction.
func (c *RedisCooldown) Allow(ctx context.Context, member string) (time.Duration, bool) {
    if !c.cfg.Enabled {
        return 0, true
    }
    key := c.cfg.Prefix + ":" + strings.ToLower(member)
    ok, err := c.rdb.SetNX(ctx, key, 1, c.cfg.Window).Result()
    if err != nil {
        log.Printf("cooldown: redis error for %s: %v", key, err)
        return 0, true
    }
    if ok {
        return 0, true
    }
    wait, err := c.rdb.PTTL(ctx, key).Result()
    if err != nil || wait < 0 {
        wait = c.cfg.Window
    }
    return wait, false
}

// MemoryCooldown is the in-process fallback used when Redis is not
// configured, and in tests.  Same semantics, one process only.
type MemoryCooldown struct {
    mu     sync.Mutex
    window time.Duration
    last   map[string]time.Time
    now    func() time.Time
}

// NewMemoryCooldown returns an in-process cooldown gate with the given
// window.  The now hook is overridable for tests.
func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
    return &MemoryCooldown{
        window: window,
        last:   make(map[string]time.Time),
        now:    time.Now,
    }
}

// SetNow replaces the time source; test hook.
func (c *MemoryCooldown) SetNow(now func() time.Time) { c.now = now }

// Allow implements the same contract as RedisCooldown.Allow.
func (c *MemoryCooldown) Allow(_ context.Context, member string) (time.Duration, bool) {
    if c.window <= 0 {
        return 0, true
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    key := strings.ToLower(member)
    now := c.now()
    if prev, ok := c.last[key]; ok {
        if since := now.Sub(prev); since < c.window {
            return c.window - since, false
        }
    }
    c.last[key] = now
    return 0, true
}
