package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports process liveness for load balancers and uptime checks.
// It says nothing about session state; use /v1/status for that.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
