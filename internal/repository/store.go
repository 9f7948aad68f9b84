package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"

    "github.com/elysium/points-auction/internal/engine"
    "github.com/elysium/points-auction/internal/model"
)

// Store implements engine.Store on top of *sql.DB.  Whole-state tables
// (queue, locks, pending, session) are replaced wholesale inside a
// transaction on every save; the bids table is append-only.
type Store struct {
    db *sql.DB
}

// NewStore returns a Store bound to the provided database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// EnsureSchema creates the snapshot tables when they do not exist.  All
// timestamps are stored in UTC with millisecond precision.
func (s *Store) EnsureSchema(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS lots (
            position      INT          NOT NULL,
            id            VARCHAR(32)  NOT NULL PRIMARY KEY,
            item          VARCHAR(255) NOT NULL,
            start_price   BIGINT       NOT NULL,
            duration_secs BIGINT       NOT NULL,
            quantity      INT          NOT NULL,
            source        VARCHAR(16)  NOT NULL,
            added_at      DATETIME(3)  NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS locked_points (
            member VARCHAR(190) NOT NULL PRIMARY KEY,
            amount BIGINT       NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS lot_runtime (
            singleton     TINYINT      NOT NULL PRIMARY KEY,
            lot_id        VARCHAR(32)  NOT NULL,
            item          VARCHAR(255) NOT NULL,
            start_price   BIGINT       NOT NULL,
            duration_secs BIGINT       NOT NULL,
            quantity      INT          NOT NULL,
            source        VARCHAR(16)  NOT NULL,
            status        VARCHAR(16)  NOT NULL,
            high_bid      BIGINT       NOT NULL,
            leader        VARCHAR(190) NOT NULL,
            deadline      DATETIME(3)  NULL,
            ext_count     INT          NOT NULL,
            going_once    TINYINT(1)   NOT NULL,
            going_twice   TINYINT(1)   NOT NULL,
            final_call    TINYINT(1)   NOT NULL,
            paused        TINYINT(1)   NOT NULL,
            remaining_ms  BIGINT       NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS bids (
            id        BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
            lot_id    VARCHAR(32)  NOT NULL,
            member    VARCHAR(190) NOT NULL,
            amount    BIGINT       NOT NULL,
            placed_at DATETIME(3)  NOT NULL,
            KEY idx_bids_lot (lot_id)
        )`,
        `CREATE TABLE IF NOT EXISTS pending_confirmations (
            handle     VARCHAR(32)  NOT NULL PRIMARY KEY,
            member     VARCHAR(190) NOT NULL,
            lot_id     VARCHAR(32)  NOT NULL,
            amount     BIGINT       NOT NULL,
            needed     BIGINT       NOT NULL,
            self_raise TINYINT(1)   NOT NULL,
            created_at DATETIME(3)  NOT NULL,
            expires_at DATETIME(3)  NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS sessions (
            singleton  TINYINT     NOT NULL PRIMARY KEY,
            stamp      VARCHAR(32) NOT NULL,
            started_at DATETIME(3) NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS session_history (
            seq           INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
            lot_id        VARCHAR(32)  NOT NULL,
            item          VARCHAR(255) NOT NULL,
            start_price   BIGINT       NOT NULL,
            duration_secs BIGINT       NOT NULL,
            quantity      INT          NOT NULL,
            source        VARCHAR(16)  NOT NULL,
            winners       TEXT         NOT NULL,
            ended_at      DATETIME(3)  NOT NULL
        )`,
    }
    for _, stmt := range stmts {
        if _, err := s.db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("ensure schema: %w", err)
        }
    }
    return nil
}

// withTx runs fn inside a transaction, rolling back unless committed.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(tx); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// Load reads the full persisted snapshot.  Inconsistencies that cannot
// be decoded are reported as engine.ErrStateCorruption so the caller
// can fall back to a safe reset.
func (s *Store) Load(ctx context.Context) (engine.Snapshot, error) {
    var snap engine.Snapshot

    lots, err := s.loadQueue(ctx)
    if err != nil {
        return snap, err
    }
    snap.Queue = lots

    locks, err := s.loadLocks(ctx)
    if err != nil {
        return snap, err
    }
    snap.Locks = locks

    rt, err := s.loadRuntime(ctx)
    if err != nil && !errors.Is(err, ErrNoSnapshot) {
        return snap, err
    }
    snap.Runtime = rt

    sess, err := s.loadSession(ctx)
    if err != nil && !errors.Is(err, ErrNoSnapshot) {
        return snap, err
    }
    snap.Session = sess
    return snap, nil
}

// Reset clears all in-flight auction state while preserving the
// append-only bid history, the ledger-side record of what happened.
func (s *Store) Reset(ctx context.Context) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        for _, table := range []string{"lot_runtime", "pending_confirmations", "sessions", "session_history", "locked_points"} {
            if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
                return err
            }
        }
        return nil
    })
}

func (s *Store) loadQueue(ctx context.Context) ([]model.Lot, error) {
    rows, err := s.db.QueryContext(ctx,
        `SELECT id, item, start_price, duration_secs, quantity, source, added_at
         FROM lots ORDER BY position`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var lots []model.Lot
    for rows.Next() {
        var l model.Lot
        var durSecs int64
        if err := rows.Scan(&l.ID, &l.Item, &l.StartPrice, &durSecs, &l.Quantity, &l.Source, &l.AddedAt); err != nil {
            return nil, fmt.Errorf("%w: lots row: %v", engine.ErrStateCorruption, err)
        }
        l.Duration = secondsToDuration(durSecs)
        lots = append(lots, l)
    }
    return lots, rows.Err()
}

func (s *Store) loadLocks(ctx context.Context) (map[string]int64, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT member, amount FROM locked_points`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    locks := make(map[string]int64)
    for rows.Next() {
        var member string
        var amount int64
        if err := rows.Scan(&member, &amount); err != nil {
            return nil, fmt.Errorf("%w: locked_points row: %v", engine.ErrStateCorruption, err)
        }
        locks[member] = amount
    }
    return locks, rows.Err()
}

func (s *Store) loadRuntime(ctx context.Context) (*model.LotRuntime, error) {
    row := s.db.QueryRowContext(ctx,
        `SELECT lot_id, item, start_price, duration_secs, quantity, source,
                status, high_bid, leader, deadline, ext_count,
                going_once, going_twice, final_call, paused, remaining_ms
         FROM lot_runtime WHERE singleton = 1`)
    var rt model.LotRuntime
    var durSecs, remainingMS int64
    var deadline sql.NullTime
    if err := row.Scan(
        &rt.Lot.ID, &rt.Lot.Item, &rt.Lot.StartPrice, &durSecs, &rt.Lot.Quantity, &rt.Lot.Source,
        &rt.Status, &rt.HighBid, &rt.Leader, &deadline, &rt.ExtCount,
        &rt.GoingOnce, &rt.GoingTwice, &rt.FinalCall, &rt.Paused, &remainingMS,
    ); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNoSnapshot
        }
        return nil, fmt.Errorf("%w: lot_runtime row: %v", engine.ErrStateCorruption, err)
    }
    rt.Lot.Duration = secondsToDuration(durSecs)
    if deadline.Valid {
        rt.Deadline = deadline.Time
    }
    rt.Remaining = millisToDuration(remainingMS)

    bids, err := s.loadBids(ctx, rt.Lot.ID)
    if err != nil {
        return nil, err
    }
    rt.Bids = bids
    return &rt, nil
}

func (s *Store) loadBids(ctx context.Context, lotID string) ([]model.Bid, error) {
    rows, err := s.db.QueryContext(ctx,
        `SELECT member, amount, placed_at FROM bids WHERE lot_id = ? ORDER BY id`, lotID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var bids []model.Bid
    for rows.Next() {
        var b model.Bid
        if err := rows.Scan(&b.Member, &b.Amount, &b.PlacedAt); err != nil {
            return nil, fmt.Errorf("%w: bids row: %v", engine.ErrStateCorruption, err)
        }
        bids = append(bids, b)
    }
    return bids, rows.Err()
}

func (s *Store) loadSession(ctx context.Context) (*model.Session, error) {
    row := s.db.QueryRowContext(ctx, `SELECT stamp, started_at FROM sessions WHERE singleton = 1`)
    var sess model.Session
    if err := row.Scan(&sess.Timestamp, &sess.StartedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrNoSnapshot
        }
        return nil, fmt.Errorf("%w: sessions row: %v", engine.ErrStateCorruption, err)
    }

    rows, err := s.db.QueryContext(ctx,
        `SELECT lot_id, item, start_price, duration_secs, quantity, source, winners, ended_at
         FROM session_history ORDER BY seq`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var r model.LotResult
        var durSecs int64
        var winnersRaw string
        if err := rows.Scan(&r.Lot.ID, &r.Lot.Item, &r.Lot.StartPrice, &durSecs, &r.Lot.Quantity, &r.Lot.Source, &winnersRaw, &r.EndedAt); err != nil {
            return nil, fmt.Errorf("%w: session_history row: %v", engine.ErrStateCorruption, err)
        }
        r.Lot.Duration = secondsToDuration(durSecs)
        if err := json.Unmarshal([]byte(winnersRaw), &r.Winners); err != nil {
            return nil, fmt.Errorf("%w: session_history winners: %v", engine.ErrStateCorruption, err)
        }
        sess.History = append(sess.History, r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return &sess, nil
}
