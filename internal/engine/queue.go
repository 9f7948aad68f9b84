package engine

import (
    "fmt"
    "strings"
    "time"

    "github.com/elysium/points-auction/internal/model"
)

// Enqueue validates and appends a lot to the pending queue.  Lots may be
// added at any time, including while a session is running; the
// coordinator picks them up in order.
func (e *Engine) Enqueue(item string, startPrice int64, duration time.Duration, quantity int, source string) (model.Lot, error) {
    item = strings.TrimSpace(item)
    if item == "" {
        return model.Lot{}, fmt.Errorf("%w: empty item name", ErrValidation)
    }
    if startPrice < 0 {
        return model.Lot{}, fmt.Errorf("%w: negative start price", ErrValidation)
    }
    if duration <= 0 {
        return model.Lot{}, fmt.Errorf("%w: non-positive duration", ErrValidation)
    }
    if quantity < 1 {
        return model.Lot{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
    }
    if source != model.SourceCatalog && source != model.SourceManual {
        return model.Lot{}, fmt.Errorf("%w: unknown source %q", ErrValidation, source)
    }

    lot := model.Lot{
        ID:         newID("a"),
        Item:       item,
        StartPrice: startPrice,
        Duration:   duration,
        Quantity:   quantity,
        Source:     source,
        AddedAt:    e.clock.Now(),
    }

    e.mu.Lock()
    defer e.mu.Unlock()
    e.queue = append(e.queue, lot)
    e.persistQueue()
    return lot, nil
}

// RemoveFromQueue removes the first queued lot whose item name matches
// case-insensitively and returns it.
func (e *Engine) RemoveFromQueue(item string) (model.Lot, error) {
    e.mu.Lock()
    defer e.mu.Unlock()
    for i, lot := range e.queue {
        if strings.EqualFold(lot.Item, strings.TrimSpace(item)) {
            e.queue = append(e.queue[:i], e.queue[i+1:]...)
            e.persistQueue()
            return lot, nil
        }
    }
    return model.Lot{}, fmt.Errorf("%w: no queued lot named %q", ErrNotFound, item)
}

// ClearQueue drops every pending lot and returns how many were removed.
func (e *Engine) ClearQueue() int {
    e.mu.Lock()
    defer e.mu.Unlock()
    n := len(e.queue)
    e.queue = nil
    e.persistQueue()
    return n
}

// Queue returns a copy of the pending lots in auction order.
func (e *Engine) Queue() []model.Lot {
    e.mu.Lock()
    defer e.mu.Unlock()
    return append([]model.Lot(nil), e.queue...)
}
