package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/elysium/points-auction/internal/engine"
)

// writeEngineError translates an engine sentinel into an HTTP response.
// The mapping is the single place transport status codes are decided;
// anything unrecognized is a 500 with a generic message so internal
// details never leak to clients.
func writeEngineError(c echo.Context, err error) error {
	var rl *engine.RateLimitError
	if errors.As(err, &rl) {
		secs := int(rl.Wait.Seconds() + 0.999)
		if secs < 1 {
			secs = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "bid rate limit",
			"retry_after": secs,
		})
	}
	switch {
	case errors.Is(err, engine.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrInsufficientFunds):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrRaceLost):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "race_lost": true})
	case errors.Is(err, engine.ErrStateUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrSessionActive):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, engine.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrExternalService):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "ledger service unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
