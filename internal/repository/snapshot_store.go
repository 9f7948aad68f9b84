package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "time"

    "github.com/elysium/points-auction/internal/model"
)

// SaveQueue replaces the persisted pending-lot queue wholesale within a
// transaction; position preserves auction order.
func (s *Store) SaveQueue(ctx context.Context, lots []model.Lot) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        if _, err := tx.ExecContext(ctx, `DELETE FROM lots`); err != nil {
            return err
        }
        if len(lots) == 0 {
            return nil
        }
        query := `INSERT INTO lots (position, id, item, start_price, duration_secs, quantity, source, added_at) VALUES `
        args := make([]interface{}, 0, len(lots)*8)
        for i, l := range lots {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?, ?, ?, ?, ?)"
            args = append(args, i, l.ID, l.Item, l.StartPrice, durationToSeconds(l.Duration), l.Quantity, l.Source, utc(l.AddedAt))
        }
        _, err := tx.ExecContext(ctx, query, args...)
        return err
    })
}

// SaveLocks replaces the persisted locked-points map wholesale.
func (s *Store) SaveLocks(ctx context.Context, locks map[string]int64) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        if _, err := tx.ExecContext(ctx, `DELETE FROM locked_points`); err != nil {
            return err
        }
        if len(locks) == 0 {
            return nil
        }
        query := `INSERT INTO locked_points (member, amount) VALUES `
        args := make([]interface{}, 0, len(locks)*2)
        first := true
        for member, amount := range locks {
            if !first {
                query += ","
            }
            first = false
            query += "(?, ?)"
            args = append(args, member, amount)
        }
        _, err := tx.ExecContext(ctx, query, args...)
        return err
    })
}

// SaveRuntime persists the active lot runtime as a singleton row; nil
// clears it.  Bid history is not written here; it lives in the
// append-only bids table.
func (s *Store) SaveRuntime(ctx context.Context, rt *model.LotRuntime) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        if _, err := tx.ExecContext(ctx, `DELETE FROM lot_runtime`); err != nil {
            return err
        }
        if rt == nil {
            return nil
        }
        var deadline interface{}
        if !rt.Deadline.IsZero() {
            deadline = utc(rt.Deadline)
        }
        _, err := tx.ExecContext(ctx,
            `INSERT INTO lot_runtime
             (singleton, lot_id, item, start_price, duration_secs, quantity, source,
              status, high_bid, leader, deadline, ext_count,
              going_once, going_twice, final_call, paused, remaining_ms)
             VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
            rt.Lot.ID, rt.Lot.Item, rt.Lot.StartPrice, durationToSeconds(rt.Lot.Duration),
            rt.Lot.Quantity, rt.Lot.Source,
            rt.Status, rt.HighBid, rt.Leader, deadline, rt.ExtCount,
            rt.GoingOnce, rt.GoingTwice, rt.FinalCall, rt.Paused,
            rt.Remaining.Milliseconds(),
        )
        return err
    })
}

// SavePending replaces the persisted pending confirmations wholesale.
// They are written for audit only; recovery deliberately drops them.
func (s *Store) SavePending(ctx context.Context, pending []model.PendingConfirmation) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        if _, err := tx.ExecContext(ctx, `DELETE FROM pending_confirmations`); err != nil {
            return err
        }
        if len(pending) == 0 {
            return nil
        }
        query := `INSERT INTO pending_confirmations (handle, member, lot_id, amount, needed, self_raise, created_at, expires_at) VALUES `
        args := make([]interface{}, 0, len(pending)*8)
        for i, p := range pending {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?, ?, ?, ?, ?)"
            args = append(args, p.Handle, p.Member, p.LotID, p.Amount, p.Needed, p.SelfRaise, utc(p.CreatedAt), utc(p.ExpiresAt))
        }
        _, err := tx.ExecContext(ctx, query, args...)
        return err
    })
}

// AppendBid appends one confirmed bid to the durable history.
func (s *Store) AppendBid(ctx context.Context, lotID string, bid model.Bid) error {
    _, err := s.db.ExecContext(ctx,
        `INSERT INTO bids (lot_id, member, amount, placed_at) VALUES (?, ?, ?, ?)`,
        lotID, bid.Member, bid.Amount, utc(bid.PlacedAt))
    return err
}

// SaveSession persists session metadata and the completed-lot history;
// nil clears both (session finalized).
func (s *Store) SaveSession(ctx context.Context, sess *model.Session) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
            return err
        }
        if _, err := tx.ExecContext(ctx, `DELETE FROM session_history`); err != nil {
            return err
        }
        if sess == nil {
            return nil
        }
        if _, err := tx.ExecContext(ctx,
            `INSERT INTO sessions (singleton, stamp, started_at) VALUES (1, ?, ?)`,
            sess.Timestamp, utc(sess.StartedAt)); err != nil {
            return err
        }
        for _, r := range sess.History {
            winners, err := json.Marshal(r.Winners)
            if err != nil {
                return err
            }
            if _, err := tx.ExecContext(ctx,
                `INSERT INTO session_history
                 (lot_id, item, start_price, duration_secs, quantity, source, winners, ended_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
                r.Lot.ID, r.Lot.Item, r.Lot.StartPrice, durationToSeconds(r.Lot.Duration),
                r.Lot.Quantity, r.Lot.Source, string(winners), utc(r.EndedAt)); err != nil {
                return err
            }
        }
        return nil
    })
}

func utc(t time.Time) time.Time { return t.UTC() }

func durationToSeconds(d time.Duration) int64 { return int64(d / time.Second) }

func secondsToDuration(secs int64) time.Duration { return time.Duration(secs) * time.Second }

func millisToDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
