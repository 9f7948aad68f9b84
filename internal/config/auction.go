package config

import "time"

// AuctionConfig collects the engine timing and policy knobs.  Every
// value has a deployment-proven default and can be overridden through
// environment variables, mirroring how the rate limit settings load.
//
//  PreviewDelay         – pause between announcing a lot and opening bids.
//  ConfirmTimeout       – how long a proposed bid may wait for confirm/cancel.
//  BidCooldown          – minimum gap between proposals from one member.
//  SnipeWindow          – a confirm landing with less than this left extends.
//  ExtensionStep        – how much each anti-snipe extension adds.
//  MaxExtensions        – cap on anti-snipe extensions per lot.
//  InterLotDelay        – gap between one lot closing and the next opening.
//  CacheRefresh         – ledger snapshot refresh interval while a session runs.
//  ResumeFloor          – minimum remaining time when resuming a paused lot,
//                         so a resume never lands inside the snipe window.
//  RequeueUnsoldCatalog – whether unsold catalog lots return to the queue
//                         for the next session (manual lots never requeue).
type AuctionConfig struct {
    PreviewDelay         time.Duration
    ConfirmTimeout       time.Duration
    BidCooldown          time.Duration
    SnipeWindow          time.Duration
    ExtensionStep        time.Duration
    MaxExtensions        int
    InterLotDelay        time.Duration
    CacheRefresh         time.Duration
    ResumeFloor          time.Duration
    RequeueUnsoldCatalog bool
}

// LoadAuctionConfig reads the engine knobs from environment variables,
// falling back to the defaults above.  Values are clamped to sane
// minimums so a typo cannot produce a zero-length confirm window.
func LoadAuctionConfig() AuctionConfig {
    cfg := AuctionConfig{
        PreviewDelay:         envDur("AUCTION_PREVIEW_DELAY", 20*time.Second),
        ConfirmTimeout:       envDur("AUCTION_CONFIRM_TIMEOUT", 10*time.Second),
        BidCooldown:          envDur("AUCTION_BID_COOLDOWN", 3*time.Second),
        SnipeWindow:          envDur("AUCTION_SNIPE_WINDOW", 60*time.Second),
        ExtensionStep:        envDur("AUCTION_EXTENSION_STEP", 60*time.Second),
        MaxExtensions:        envInt("AUCTION_MAX_EXTENSIONS", 15),
        InterLotDelay:        envDur("AUCTION_INTER_LOT_DELAY", 20*time.Second),
        CacheRefresh:         envDur("AUCTION_CACHE_REFRESH", 30*time.Minute),
        ResumeFloor:          envDur("AUCTION_RESUME_FLOOR", 60*time.Second),
        RequeueUnsoldCatalog: envBool("AUCTION_REQUEUE_UNSOLD_CATALOG", true),
    }
    if cfg.ConfirmTimeout < time.Second {
        cfg.ConfirmTimeout = time.Second
    }
    if cfg.ExtensionStep < time.Second {
        cfg.ExtensionStep = time.Second
    }
    if cfg.MaxExtensions < 0 {
        cfg.MaxExtensions = 0
    }
    return cfg
}
