package handler

import (
	"net/http" // HTTP status codes
	"time"     // confirmation countdown in responses

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/elysium/points-auction/internal/engine"
	"github.com/elysium/points-auction/internal/middleware"
)

// BidHandler exposes the two-phase bid protocol over HTTP.  All methods
// assume that JWT authentication and role validation has already been
// performed by middleware; the acting member is taken from the request
// context, never from the body, so nobody can bid on another member's
// behalf.
type BidHandler struct {
	Engine *engine.Engine
}

// NewBidHandler constructs a BidHandler bound to the engine.
func NewBidHandler(eng *engine.Engine) *BidHandler {
	if eng == nil {
		panic("nil engine passed to NewBidHandler")
	}
	return &BidHandler{Engine: eng}
}

// Propose handles POST /v1/bids.  The body must contain a JSON object
// with a positive integer "amount".  On success it returns 202 Accepted
// with the confirmation handle and its expiry; the bid takes effect only
// once confirmed.
func (h *BidHandler) Propose(c echo.Context) error {
	ident := middleware.Identity(c)
	if ident.Name == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Engine.Propose(c.Request().Context(), ident, body.Amount)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"handle":        p.Handle,
		"lot_id":        p.LotID,
		"amount":        p.Amount,
		"self_raise":    p.SelfRaise,
		"points_needed": p.Needed,
		"expires_in":    int64(p.ExpiresAt.Sub(p.CreatedAt) / time.Second),
	})
}

// Confirm handles POST /v1/bids/:handle/confirm.  Only the proposer or
// an admin may confirm.  On success it returns the updated lot state;
// a 409 with "race_lost" means a higher concurrent bid won instead.
func (h *BidHandler) Confirm(c echo.Context) error {
	ident := middleware.Identity(c)
	if ident.Name == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rt, err := h.Engine.Confirm(c.Request().Context(), c.Param("handle"), ident)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"lot_id":    rt.Lot.ID,
		"item":      rt.Lot.Item,
		"high_bid":  rt.HighBid,
		"leader":    rt.Leader,
		"ext_count": rt.ExtCount,
		"deadline":  rt.Deadline.UTC(),
	})
}

// Cancel handles POST /v1/bids/:handle/cancel.  Discards a pending
// proposal; nothing was locked, so nothing unwinds.
func (h *BidHandler) Cancel(c echo.Context) error {
	ident := middleware.Identity(c)
	if ident.Name == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Engine.Cancel(c.Request().Context(), c.Param("handle"), ident); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"canceled": true})
}

// Balance handles GET /v1/balance.  It reports the acting member's
// cached ledger total, their currently locked points and the spendable
// remainder.
func (h *BidHandler) Balance(c echo.Context) error {
	ident := middleware.Identity(c)
	if ident.Name == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	total := h.Engine.Cache().Balance(ident.Name)
	locked := h.Engine.Locks().Locked(ident.Name)
	return c.JSON(http.StatusOK, echo.Map{
		"member":    ident.Name,
		"total":     total,
		"locked":    locked,
		"available": h.Engine.Available(ident.Name),
	})
}
