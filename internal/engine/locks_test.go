package engine

import (
	"testing"

	"github.com/elysium/points-auction/internal/testutil"
)

func TestLockManagerAccumulatesAndReleases(t *testing.T) {
	lm := NewLockManager(nil)
	lm.Lock("Aria", 100)
	lm.Lock("Aria", 50)
	testutil.AssertEqual(t, int64(150), lm.Locked("Aria"))

	lm.Unlock("Aria", 50)
	testutil.AssertEqual(t, int64(100), lm.Locked("Aria"))

	// Over-release floors at zero and removes the entry.
	lm.Unlock("Aria", 500)
	testutil.AssertEqual(t, int64(0), lm.Locked("Aria"))
	testutil.AssertEqual(t, 0, len(lm.Copy()))
}

func TestLockManagerClear(t *testing.T) {
	lm := NewLockManager(nil)
	lm.Lock("Aria", 100)
	lm.Lock("Brooks", 200)
	lm.Clear()
	testutil.AssertEqual(t, int64(0), lm.Locked("Aria"))
	testutil.AssertEqual(t, int64(0), lm.Locked("Brooks"))
}

func TestLockManagerPersistsEveryMutation(t *testing.T) {
	var writes []map[string]int64
	lm := NewLockManager(func(m map[string]int64) error {
		writes = append(writes, m)
		return nil
	})
	lm.Lock("Aria", 100)
	lm.Unlock("Aria", 40)
	lm.Clear()

	testutil.AssertEqual(t, 3, len(writes))
	testutil.AssertEqual(t, int64(100), writes[0]["Aria"])
	testutil.AssertEqual(t, int64(60), writes[1]["Aria"])
	testutil.AssertEqual(t, 0, len(writes[2]))
}

func TestLockManagerRestoreSkipsNonPositive(t *testing.T) {
	var writes int
	lm := NewLockManager(func(map[string]int64) error { writes++; return nil })
	lm.Restore(map[string]int64{"Aria": 100, "Brooks": 0, "Cleo": -5})
	testutil.AssertEqual(t, int64(100), lm.Locked("Aria"))
	testutil.AssertEqual(t, int64(0), lm.Locked("Brooks"))
	testutil.AssertEqual(t, int64(0), lm.Locked("Cleo"))
	// Restore reflects what is already on disk; it must not write back.
	testutil.AssertEqual(t, 0, writes)
}
