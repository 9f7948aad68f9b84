package engine

// Shared fakes for the engine tests: a deterministic clock whose timers
// fire synchronously from Advance, an in-memory store, a capturing
// notifier and a scripted ledger.

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/elysium/points-auction/internal/config"
	"github.com/elysium/points-auction/internal/ledger"
	"github.com/elysium/points-auction/internal/model"
	"github.com/elysium/points-auction/internal/queue"
)

type fakeTimer struct {
	clk     *fakeClock
	due     time.Time
	f       func()
	fired   bool
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	cur    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, due: c.cur.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run synchronously without the clock mutex held, so they may
// schedule further timers; any that fall within the window fire too.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.cur.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.due.After(target) {
				continue
			}
			if next == nil || t.due.Before(next.due) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.due.After(c.cur) {
			c.cur = next.due
		}
		next.fired = true
		f := next.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.cur = target
	c.mu.Unlock()
}

type memStore struct {
	mu      sync.Mutex
	queue   []model.Lot
	locks   map[string]int64
	runtime *model.LotRuntime
	pending []model.PendingConfirmation
	bids    map[string][]model.Bid
	session *model.Session
	loadErr error
	resets  int
}

func newMemStore() *memStore {
	return &memStore{locks: map[string]int64{}, bids: map[string][]model.Bid{}}
}

func (s *memStore) SaveQueue(_ context.Context, lots []model.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]model.Lot(nil), lots...)
	return nil
}

func (s *memStore) SaveLocks(_ context.Context, locks map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = make(map[string]int64, len(locks))
	for m, n := range locks {
		s.locks[m] = n
	}
	return nil
}

func (s *memStore) SaveRuntime(_ context.Context, rt *model.LotRuntime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runtime = rt
	return nil
}

func (s *memStore) SavePending(_ context.Context, pending []model.PendingConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]model.PendingConfirmation(nil), pending...)
	return nil
}

func (s *memStore) AppendBid(_ context.Context, lotID string, bid model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[lotID] = append(s.bids[lotID], bid)
	return nil
}

func (s *memStore) SaveSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	return nil
}

func (s *memStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Snapshot{}, s.loadErr
	}
	return Snapshot{
		Queue:   append([]model.Lot(nil), s.queue...),
		Locks:   s.locks,
		Runtime: s.runtime,
		Session: s.session,
	}, nil
}

func (s *memStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.runtime = nil
	s.pending = nil
	s.session = nil
	s.locks = map[string]int64{}
	return nil
}

type fakeNotifier struct {
	mu  sync.Mutex
	evs []queue.Event
}

func (n *fakeNotifier) Publish(_ context.Context, ev queue.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evs = append(n.evs, ev)
	return nil
}

func (n *fakeNotifier) ofType(t string) []queue.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []queue.Event
	for _, ev := range n.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (n *fakeNotifier) count(t string) int { return len(n.ofType(t)) }

type submission struct {
	results []model.MemberResult
	stamp   string
}

type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]int64
	balErr      error
	submitErr   error
	submissions []submission
}

func (l *fakeLedger) GetBalances(_ context.Context) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balErr != nil {
		return nil, l.balErr
	}
	out := make(map[string]int64, len(l.balances))
	for m, n := range l.balances {
		out[m] = n
	}
	return out, nil
}

func (l *fakeLedger) SubmitResults(_ context.Context, results []model.MemberResult, stamp string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return l.submitErr
	}
	l.submissions = append(l.submissions, submission{results: results, stamp: stamp})
	return nil
}

type openGate struct{}

func (openGate) Allow(context.Context, string) (time.Duration, bool) { return 0, true }

type closedGate struct{ wait time.Duration }

func (g closedGate) Allow(context.Context, string) (time.Duration, bool) { return g.wait, false }

func testConfig() config.AuctionConfig {
	return config.AuctionConfig{
		PreviewDelay:         20 * time.Second,
		ConfirmTimeout:       10 * time.Second,
		BidCooldown:          3 * time.Second,
		SnipeWindow:          60 * time.Second,
		ExtensionStep:        60 * time.Second,
		MaxExtensions:        15,
		InterLotDelay:        20 * time.Second,
		CacheRefresh:         30 * time.Minute,
		ResumeFloor:          60 * time.Second,
		RequeueUnsoldCatalog: true,
	}
}

type testEnv struct {
	eng *Engine
	clk *fakeClock
	st  *memStore
	nt  *fakeNotifier
	led *fakeLedger
}

func newTestEnv(t *testing.T, balances map[string]int64) *testEnv {
	t.Helper()
	return newTestEnvCfg(t, testConfig(), balances)
}

func newTestEnvCfg(t *testing.T, cfg config.AuctionConfig, balances map[string]int64) *testEnv {
	t.Helper()
	clk := newFakeClock()
	st := newMemStore()
	nt := &fakeNotifier{}
	led := &fakeLedger{balances: balances}
	cache := ledger.NewCache(led)
	eng := New(cfg, st, nt, openGate{}, cache, led, clk)
	return &testEnv{eng: eng, clk: clk, st: st, nt: nt, led: led}
}

// startLot enqueues one lot, starts a session and advances through the
// inter-lot delay and preview so bidding is open when it returns.
func (env *testEnv) startLot(t *testing.T, item string, price int64, dur time.Duration, qty int) model.Lot {
	t.Helper()
	lot, err := env.eng.Enqueue(item, price, dur, qty, model.SourceCatalog)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.eng.StartSession(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	env.clk.Advance(env.eng.cfg.InterLotDelay + env.eng.cfg.PreviewDelay)
	rep := env.eng.Status()
	if rep.Active == nil || rep.Active.Status != model.LotActive {
		t.Fatalf("lot not active after preview: %+v", rep)
	}
	return lot
}

// confirm proposes and immediately confirms a bid for member.
func (env *testEnv) confirm(t *testing.T, member string, amount int64) model.LotRuntime {
	t.Helper()
	m := model.Member{Name: member, Role: model.RoleMember}
	p, err := env.eng.Propose(context.Background(), m, amount)
	if err != nil {
		t.Fatalf("propose %s %d: %v", member, amount, err)
	}
	rt, err := env.eng.Confirm(context.Background(), p.Handle, m)
	if err != nil {
		t.Fatalf("confirm %s %d: %v", member, amount, err)
	}
	return rt
}
