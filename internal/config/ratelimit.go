package config

import (
    "os"
    "strconv"
    "time"
)

// CooldownConfig defines settings for the bid-proposal cooldown.  Each
// member may open at most one proposal per Window; the gate is enforced
// in Redis so that restarts and replicas agree, with an in-process
// fallback when Redis is unavailable.
type CooldownConfig struct {
    Enabled bool
    Window  time.Duration
    Prefix  string
}

// LoadCooldownConfig reads environment variables to build a
// CooldownConfig.  Defaults are used when variables are not set.  The
// window defaults to the engine's bid cooldown.
func LoadCooldownConfig() CooldownConfig {
    def := CooldownConfig{
        Enabled: envBool("BID_COOLDOWN_ENABLED", true),
        Window:  envDur("AUCTION_BID_COOLDOWN", 3*time.Second),
        Prefix:  envStr("BID_COOLDOWN_PREFIX", "cooldown"),
    }
    if def.Window <= 0 {
        def.Window = 3 * time.Second
    }
    return def
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
