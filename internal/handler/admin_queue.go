package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/elysium/points-auction/internal/engine"
	"github.com/elysium/points-auction/internal/model"
)

// QueueHandler manages the pending-lot queue.  All routes are behind
// the ADMIN role; members see queued lots only through the auction
// events once a session starts.
type QueueHandler struct {
	Engine *engine.Engine
}

// NewQueueHandler constructs a QueueHandler bound to the engine.
func NewQueueHandler(eng *engine.Engine) *QueueHandler {
	if eng == nil {
		panic("nil engine passed to NewQueueHandler")
	}
	return &QueueHandler{Engine: eng}
}

// Add handles POST /v1/queue.  The body must contain "item" and
// "start_price"; "duration_secs" and "quantity" are optional and
// default to 300 seconds and a single unit.  "source" may be "catalog"
// for recurring catalog imports, whose unsold lots requeue for the next
// session, or "manual" (the default) for one-off entries, which do not.
func (h *QueueHandler) Add(c echo.Context) error {
	var body struct {
		Item         string `json:"item"`
		StartPrice   int64  `json:"start_price"`
		DurationSecs int64  `json:"duration_secs"`
		Quantity     int    `json:"quantity"`
		Source       string `json:"source"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.DurationSecs == 0 {
		body.DurationSecs = 300
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	if body.Source == "" {
		body.Source = model.SourceManual
	}
	lot, err := h.Engine.Enqueue(body.Item, body.StartPrice,
		time.Duration(body.DurationSecs)*time.Second, body.Quantity, body.Source)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, lot)
}

// List handles GET /v1/queue and returns the queued lots in auction
// order.
func (h *QueueHandler) List(c echo.Context) error {
	lots := h.Engine.Queue()
	return c.JSON(http.StatusOK, echo.Map{"lots": lots, "count": len(lots)})
}

// Remove handles DELETE /v1/queue/:item.  Matching is by item name,
// case-insensitive, first match wins.
func (h *QueueHandler) Remove(c echo.Context) error {
	lot, err := h.Engine.RemoveFromQueue(c.Param("item"))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": lot})
}

// Clear handles DELETE /v1/queue and empties the queue, reporting how
// many lots were dropped.
func (h *QueueHandler) Clear(c echo.Context) error {
	n := h.Engine.ClearQueue()
	return c.JSON(http.StatusOK, echo.Map{"cleared": n})
}
