package engine

import (
	"context"
	"testing"
	"time"

	"github.com/elysium/points-auction/internal/model"
	"github.com/elysium/points-auction/internal/queue"
	"github.com/elysium/points-auction/internal/testutil"
)

func TestStartSessionEmptyQueue(t *testing.T) {
	env := newTestEnv(t, testBalances)
	err := env.eng.StartSession(context.Background())
	testutil.AssertErrorIs(t, err, ErrStateUnavailable)
}

func TestStartSessionTwice(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)
	err := env.eng.StartSession(context.Background())
	testutil.AssertErrorIs(t, err, ErrSessionActive)
}

func TestStartSessionFailsClosedWhenLedgerDown(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.led.balErr = context.DeadlineExceeded
	_, err := env.eng.Enqueue("Ember Cloak", 100, 5*time.Minute, 1, model.SourceCatalog)
	testutil.AssertNoError(t, err)

	err = env.eng.StartSession(context.Background())
	testutil.AssertErrorIs(t, err, ErrExternalService)
	testutil.AssertFalse(t, env.eng.Status().SessionActive)

	// The coordinator is not wedged: once the ledger answers, a start
	// succeeds.
	env.led.balErr = nil
	testutil.AssertNoError(t, env.eng.StartSession(context.Background()))
}

func TestPauseFreezesCountdownAndRejectsBids(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)

	env.clk.Advance(100 * time.Second) // 200s remaining
	testutil.AssertNoError(t, env.eng.PauseSession())
	testutil.AssertEqual(t, int64(200), env.eng.Status().TimeLeft)

	_, err := env.eng.Propose(context.Background(), member("Aria"), 200)
	testutil.AssertErrorIs(t, err, ErrStateUnavailable)

	// Frozen means frozen: wall-clock time passing changes nothing.
	env.clk.Advance(10 * time.Minute)
	testutil.AssertEqual(t, int64(200), env.eng.Status().TimeLeft)
	testutil.AssertEqual(t, 0, env.nt.count(queue.EventLotNoBids))

	testutil.AssertNoError(t, env.eng.ResumeSession())
	env.clk.Advance(200 * time.Second)
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventLotNoBids))
}

func TestResumeFloorsRemainingTime(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)

	env.clk.Advance(280 * time.Second) // 20s remaining
	testutil.AssertNoError(t, env.eng.PauseSession())
	testutil.AssertNoError(t, env.eng.ResumeSession())
	// A resume never drops straight into the snipe window's final
	// seconds; it is floored to a full minute.
	testutil.AssertEqual(t, int64(60), env.eng.Status().TimeLeft)
}

func TestFinalizeSubmitsCompleteResultSet(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)
	env.confirm(t, "Aria", 200)
	testutil.AssertNoError(t, env.eng.StopCurrentLot())

	stamp := env.eng.Status().SessionTimestamp
	env.clk.Advance(env.eng.cfg.InterLotDelay)

	rep := env.eng.Status()
	testutil.AssertFalse(t, rep.SessionActive)
	testutil.AssertEqual(t, int64(0), env.eng.Locks().Locked("Aria"))
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventSessionFinalized))

	testutil.AssertEqual(t, 1, len(env.led.submissions))
	sub := env.led.submissions[0]
	testutil.AssertEqual(t, stamp, sub.stamp)
	// One row per cached member, zero for everyone who won nothing,
	// sorted by name.
	testutil.AssertEqual(t, []model.MemberResult{
		{Member: "Aria", TotalSpent: 200},
		{Member: "Brooks", TotalSpent: 0},
		{Member: "Cleo", TotalSpent: 0},
		{Member: "Dorian", TotalSpent: 0},
	}, sub.results)
}

func TestFinalizeSkipsSubmissionWhenNothingSold(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)
	testutil.AssertNoError(t, env.eng.StopCurrentLot())
	env.clk.Advance(env.eng.cfg.InterLotDelay)

	testutil.AssertEqual(t, 0, len(env.led.submissions))
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventSessionFinalized))
}

func TestFinalizeRequeuesUnsoldCatalogLots(t *testing.T) {
	env := newTestEnv(t, testBalances)
	lot := env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)
	testutil.AssertNoError(t, env.eng.StopCurrentLot())
	env.clk.Advance(env.eng.cfg.InterLotDelay)

	lots := env.eng.Queue()
	testutil.AssertEqual(t, 1, len(lots))
	testutil.AssertEqual(t, lot.ID, lots[0].ID)
}

func TestFinalizeDropsUnsoldManualLots(t *testing.T) {
	env := newTestEnv(t, testBalances)
	_, err := env.eng.Enqueue("One-off Trinket", 100, 5*time.Minute, 1, model.SourceManual)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, env.eng.StartSession(context.Background()))
	env.clk.Advance(env.eng.cfg.InterLotDelay + env.eng.cfg.PreviewDelay)
	testutil.AssertNoError(t, env.eng.StopCurrentLot())
	env.clk.Advance(env.eng.cfg.InterLotDelay)

	testutil.AssertEqual(t, 0, len(env.eng.Queue()))
}

func TestFinalizeClearsStateEvenWhenSubmissionFails(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)
	env.confirm(t, "Aria", 200)
	testutil.AssertNoError(t, env.eng.StopCurrentLot())

	env.led.submitErr = context.DeadlineExceeded
	env.clk.Advance(env.eng.cfg.InterLotDelay)

	testutil.AssertFalse(t, env.eng.Status().SessionActive)
	testutil.AssertEqual(t, int64(0), env.eng.Locks().Locked("Aria"))
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventSubmitFailed))
	testutil.AssertEqual(t, 0, env.nt.count(queue.EventSessionFinalized))

	// The coordinator is usable for the next session immediately.
	_, err := env.eng.Enqueue("Star Shards", 50, 2*time.Minute, 1, model.SourceCatalog)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, env.eng.StartSession(context.Background()))
}

func TestSessionRunsLotsSequentially(t *testing.T) {
	env := newTestEnv(t, testBalances)
	_, err := env.eng.Enqueue("Ember Cloak", 100, 2*time.Minute, 1, model.SourceCatalog)
	testutil.AssertNoError(t, err)
	_, err = env.eng.Enqueue("Star Shards", 50, 2*time.Minute, 1, model.SourceCatalog)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, env.eng.StartSession(context.Background()))

	// First lot: inter-lot delay, preview, full countdown.
	env.clk.Advance(env.eng.cfg.InterLotDelay + env.eng.cfg.PreviewDelay + 2*time.Minute)
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventLotNoBids))
	testutil.AssertTrue(t, env.eng.Status().SessionActive)

	// Second lot follows automatically.
	env.clk.Advance(env.eng.cfg.InterLotDelay + env.eng.cfg.PreviewDelay)
	rep := env.eng.Status()
	testutil.AssertEqual(t, "Star Shards", rep.Active.Lot.Item)

	env.clk.Advance(2*time.Minute + env.eng.cfg.InterLotDelay)
	testutil.AssertFalse(t, env.eng.Status().SessionActive)
}

func TestRecoverReschedulesActiveLot(t *testing.T) {
	env := newTestEnv(t, testBalances)
	now := env.clk.Now()
	env.st.session = &model.Session{Timestamp: "01/10/26 17:30", StartedAt: now.Add(-time.Hour)}
	env.st.runtime = &model.LotRuntime{
		Lot:      model.Lot{ID: "a_1", Item: "Ember Cloak", StartPrice: 100, Duration: 5 * time.Minute, Quantity: 1, Source: model.SourceCatalog},
		Status:   model.LotActive,
		HighBid:  200,
		Leader:   "Aria",
		Deadline: now.Add(90 * time.Second),
		Bids:     []model.Bid{{Member: "Aria", Amount: 200, PlacedAt: now.Add(-time.Minute)}},
	}
	env.st.locks = map[string]int64{"Aria": 200}

	testutil.AssertNoError(t, env.eng.Recover(context.Background()))
	testutil.AssertEqual(t, int64(200), env.eng.Locks().Locked("Aria"))
	testutil.AssertEqual(t, int64(90), env.eng.Status().TimeLeft)

	// The countdown resumes from the persisted deadline, not from a
	// fresh full duration.
	env.clk.Advance(30 * time.Second) // 60s remaining
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventGoingOnce))
	env.clk.Advance(60 * time.Second)
	sold := env.nt.ofType(queue.EventLotSold)
	testutil.AssertEqual(t, 1, len(sold))
	testutil.AssertEqual(t, "Aria", sold[0].Winners[0].Member)
}

func TestRecoverClosesExpiredLot(t *testing.T) {
	env := newTestEnv(t, testBalances)
	now := env.clk.Now()
	env.st.session = &model.Session{Timestamp: "01/10/26 17:30", StartedAt: now.Add(-time.Hour)}
	env.st.runtime = &model.LotRuntime{
		Lot:      model.Lot{ID: "a_1", Item: "Ember Cloak", StartPrice: 100, Duration: 5 * time.Minute, Quantity: 1, Source: model.SourceCatalog},
		Status:   model.LotActive,
		HighBid:  200,
		Leader:   "Aria",
		Deadline: now.Add(-time.Minute),
	}

	testutil.AssertNoError(t, env.eng.Recover(context.Background()))
	testutil.AssertEqual(t, 1, env.nt.count(queue.EventLotSold))
	testutil.AssertTrue(t, env.eng.Status().Active == nil, "expired lot should close on recovery")
}

func TestRecoverResetsCorruptState(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.st.loadErr = ErrStateCorruption

	testutil.AssertNoError(t, env.eng.Recover(context.Background()))
	testutil.AssertEqual(t, 1, env.st.resets)
}

func TestRecoverResetsRuntimeWithoutSession(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.st.runtime = &model.LotRuntime{
		Lot:    model.Lot{ID: "a_1", Item: "Ember Cloak", Duration: 5 * time.Minute, Quantity: 1, Source: model.SourceCatalog},
		Status: model.LotActive,
	}
	testutil.AssertNoError(t, env.eng.Recover(context.Background()))
	testutil.AssertEqual(t, 1, env.st.resets)
}

func TestSessionTimestampFormat(t *testing.T) {
	env := newTestEnv(t, testBalances)
	env.startLot(t, "Ember Cloak", 100, 5*time.Minute, 1)
	// Clock starts at 2026-01-10 18:00 UTC.
	testutil.AssertEqual(t, "01/10/26 18:00", env.eng.Status().SessionTimestamp)
}
