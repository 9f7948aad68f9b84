package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/elysium/points-auction/internal/handler"    // import the handlers that implement business logic
	"github.com/elysium/points-auction/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/elysium/points-auction/internal/model"      // role constants shared with the engine
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check and the read-only session
// status used by lobby displays.
func RegisterRoutes(e *echo.Echo, s *handler.SessionHandler) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
	// Session status is safe to expose without a token; it carries no
	// member balances.
	e.GET("/v1/status", s.Status)
}

// RegisterMember registers the bid protocol routes.  All of them require
// a valid access token with the MEMBER or ADMIN role; the acting member
// is always taken from the token, never from the request body.
func RegisterMember(e *echo.Echo, b *handler.BidHandler, jwtSecret string) {
	g := e.Group("/v1")
	// Apply the JWTAuth middleware to the protected group using the provided secret.
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleMember, model.RoleAdmin))

	// Two-phase bid protocol: propose, then confirm or cancel within the
	// confirmation window.
	g.POST("/bids", b.Propose)
	g.POST("/bids/:handle/confirm", b.Confirm)
	g.POST("/bids/:handle/cancel", b.Cancel)
	// Spendable balance for the acting member.
	g.GET("/balance", b.Balance)
}

// RegisterAdmin registers queue management and session lifecycle routes.
// Only tokens carrying the ADMIN role pass.
func RegisterAdmin(e *echo.Echo, q *handler.QueueHandler, s *handler.SessionHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	// Pending-lot queue management.
	g.POST("/queue", q.Add)
	g.GET("/queue", q.List)
	g.DELETE("/queue/:item", q.Remove)
	g.DELETE("/queue", q.Clear)

	// Session lifecycle and per-lot overrides.
	g.POST("/session/start", s.Start)
	g.POST("/session/pause", s.Pause)
	g.POST("/session/resume", s.Resume)
	g.POST("/session/stop-lot", s.StopLot)
	g.POST("/session/extend", s.Extend)
}
