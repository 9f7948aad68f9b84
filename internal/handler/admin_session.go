package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/elysium/points-auction/internal/engine"
)

// SessionHandler drives the auction session lifecycle.  Start, pause,
// resume and the per-lot overrides are ADMIN routes; Status is public
// read-only and safe to poll.
type SessionHandler struct {
	Engine *engine.Engine
}

// NewSessionHandler constructs a SessionHandler bound to the engine.
func NewSessionHandler(eng *engine.Engine) *SessionHandler {
	if eng == nil {
		panic("nil engine passed to NewSessionHandler")
	}
	return &SessionHandler{Engine: eng}
}

// Start handles POST /v1/session/start.  It loads a fresh ledger
// snapshot and begins running the queued lots sequentially.  Fails
// closed when the ledger is unreachable or the queue is empty.
func (h *SessionHandler) Start(c echo.Context) error {
	if err := h.Engine.StartSession(c.Request().Context()); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, h.Engine.Status())
}

// Pause handles POST /v1/session/pause.  The active lot's countdown
// freezes; bids are rejected until resume.
func (h *SessionHandler) Pause(c echo.Context) error {
	if err := h.Engine.PauseSession(); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, h.Engine.Status())
}

// Resume handles POST /v1/session/resume and restarts a paused lot's
// countdown from where it froze.
func (h *SessionHandler) Resume(c echo.Context) error {
	if err := h.Engine.ResumeSession(); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, h.Engine.Status())
}

// StopLot handles POST /v1/session/stop-lot.  It closes the active lot
// immediately at the current high bid; the session then moves on to the
// next queued lot as usual.
func (h *SessionHandler) StopLot(c echo.Context) error {
	if err := h.Engine.StopCurrentLot(); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, h.Engine.Status())
}

// Extend handles POST /v1/session/extend.  The body may carry
// "seconds"; when absent or non-positive the countdown is extended by
// one minute.  Manual extensions do not count against the anti-snipe
// cap.
func (h *SessionHandler) Extend(c echo.Context) error {
	var body struct {
		Seconds int64 `json:"seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Seconds <= 0 {
		body.Seconds = 60
	}
	if err := h.Engine.ExtendCurrentLot(time.Duration(body.Seconds) * time.Second); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, h.Engine.Status())
}

// Status handles GET /v1/status.  Unauthenticated so lobby displays can
// poll it.
func (h *SessionHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Engine.Status())
}
