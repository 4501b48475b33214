// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/handler"
	"github.com/mkarimv/vehicle-service-center/internal/middleware"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid token of any
// role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(workflow.RoleCustomer, workflow.RoleTechnician, workflow.RoleStaff, workflow.RoleAdmin))
	auth.GET("/me", a.Me)
}
