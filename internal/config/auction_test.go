package config

import (
	"testing"
	"time"

	"github.com/elysium/points-auction/internal/testutil"
)

func TestLoadAuctionConfigDefaults(t *testing.T) {
	cfg := LoadAuctionConfig()
	testutil.AssertEqual(t, 20*time.Second, cfg.PreviewDelay)
	testutil.AssertEqual(t, 10*time.Second, cfg.ConfirmTimeout)
	testutil.AssertEqual(t, 3*time.Second, cfg.BidCooldown)
	testutil.AssertEqual(t, 60*time.Second, cfg.SnipeWindow)
	testutil.AssertEqual(t, 60*time.Second, cfg.ExtensionStep)
	testutil.AssertEqual(t, 15, cfg.MaxExtensions)
	testutil.AssertEqual(t, 20*time.Second, cfg.InterLotDelay)
	testutil.AssertTrue(t, cfg.RequeueUnsoldCatalog)
}

func TestLoadAuctionConfigOverrides(t *testing.T) {
	t.Setenv("AUCTION_CONFIRM_TIMEOUT", "30s")
	t.Setenv("AUCTION_MAX_EXTENSIONS", "5")
	t.Setenv("AUCTION_REQUEUE_UNSOLD_CATALOG", "false")

	cfg := LoadAuctionConfig()
	testutil.AssertEqual(t, 30*time.Second, cfg.ConfirmTimeout)
	testutil.AssertEqual(t, 5, cfg.MaxExtensions)
	testutil.AssertFalse(t, cfg.RequeueUnsoldCatalog)
}

func TestLoadAuctionConfigClampsBadValues(t *testing.T) {
	t.Setenv("AUCTION_CONFIRM_TIMEOUT", "10ms")
	t.Setenv("AUCTION_MAX_EXTENSIONS", "-3")
	t.Setenv("AUCTION_SNIPE_WINDOW", "not-a-duration")

	cfg := LoadAuctionConfig()
	testutil.AssertEqual(t, time.Second, cfg.ConfirmTimeout)
	testutil.AssertEqual(t, 0, cfg.MaxExtensions)
	// Unparseable values fall back to the default.
	testutil.AssertEqual(t, 60*time.Second, cfg.SnipeWindow)
}

func TestLoadCooldownConfig(t *testing.T) {
	cfg := LoadCooldownConfig()
	testutil.AssertTrue(t, cfg.Enabled)
	testutil.AssertEqual(t, 3*time.Second, cfg.Window)
	testutil.AssertEqual(t, "cooldown", cfg.Prefix)

	t.Setenv("BID_COOLDOWN_ENABLED", "false")
	t.Setenv("AUCTION_BID_COOLDOWN", "5s")
	cfg = LoadCooldownConfig()
	testutil.AssertFalse(t, cfg.Enabled)
	testutil.AssertEqual(t, 5*time.Second, cfg.Window)
}
