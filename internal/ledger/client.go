// Package ledger talks to the external points ledger: the webhook that
// holds authoritative member balances and durably records final session
// spend.  The ledger is consumed as an opaque balance/commit service;
// its own consistency model is not ours.
package ledger

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "net/http"
    "time"

    "github.com/elysium/points-auction/internal/model"
)

// API is the ledger surface the engine consumes.  Implemented by
// WebhookClient in production and by fakes in tests.
type API interface {
    // GetBalances fetches the full member→points mapping.
    GetBalances(ctx context.Context) (map[string]int64, error)

    // SubmitResults durably records the per-member session spend under
    // the given session timestamp.
    SubmitResults(ctx context.Context, results []model.MemberResult, sessionTimestamp string) error
}

// WebhookClient calls the ledger webhook with bounded retries.  Each
// request is retried up to Attempts times with a backoff of
// Backoff multiplied by the attempt number, then fails loudly.
type WebhookClient struct {
    URL      string
    Client   *http.Client
    Attempts int
    Backoff  time.Duration
}

// NewWebhookClient returns a client with the production retry policy:
// three attempts, 2s/4s between them, 30s per-request timeout.
func NewWebhookClient(url string) *WebhookClient {
    return &WebhookClient{
        URL:      url,
        Client:   &http.Client{Timeout: 30 * time.Second},
        Attempts: 3,
        Backoff:  2 * time.Second,
    }
}

// GetBalances implements API.
func (c *WebhookClient) GetBalances(ctx context.Context) (map[string]int64, error) {
    body, err := c.post(ctx, map[string]any{"action": "getBiddingPoints"})
    if err != nil {
        return nil, err
    }
    var parsed struct {
        Points map[string]int64 `json:"points"`
    }
    if err := json.Unmarshal(body, &parsed); err != nil {
        return nil, fmt.Errorf("ledger: parse balances: %w", err)
    }
    if parsed.Points == nil {
        parsed.Points = map[string]int64{}
    }
    return parsed.Points, nil
}

// SubmitResults implements API.
func (c *WebhookClient) SubmitResults(ctx context.Context, results []model.MemberResult, sessionTimestamp string) error {
    _, err := c.post(ctx, map[string]any{
        "action":    "submitBiddingResults",
        "results":   results,
        "timestamp": sessionTimestamp,
    })
    return err
}

// post sends one JSON payload with the retry policy and returns the
// response body of the first successful attempt.
func (c *WebhookClient) post(ctx context.Context, payload map[string]any) ([]byte, error) {
    raw, err := json.Marshal(payload)
    if err != nil {
        return nil, err
    }
    attempts := c.Attempts
    if attempts < 1 {
        attempts = 1
    }
    var lastErr error
    for attempt := 1; attempt <= attempts; attempt++ {
        if attempt > 1 {
            wait := c.Backoff * time.Duration(attempt-1)
            select {
            case <-ctx.Done():
                return nil, ctx.Err()
            case <-time.After(wait):
            }
        }
        req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(raw))
        if err != nil {
            return nil, err
        }
        req.Header.Set("Content-Type", "application/json")
        resp, err := c.Client.Do(req)
        if err != nil {
            lastErr = err
            log.Printf("ledger: attempt %d failed: %v", attempt, err)
            continue
        }
        body, readErr := io.ReadAll(resp.Body)
        resp.Body.Close()
        if readErr != nil {
            lastErr = readErr
            continue
        }
        if resp.StatusCode != http.StatusOK {
            lastErr = fmt.Errorf("ledger: status %d: %s", resp.StatusCode, truncate(body, 120))
            log.Printf("ledger: attempt %d failed: %v", attempt, lastErr)
            continue
        }
        return body, nil
    }
    return nil, fmt.Errorf("ledger: all %d attempts failed: %w", attempts, lastErr)
}

func truncate(b []byte, n int) string {
    if len(b) <= n {
        return string(b)
    }
    return string(b[:n]) + "..."
}
