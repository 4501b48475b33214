package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/handler"
	"github.com/mkarimv/vehicle-service-center/internal/middleware"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// RegisterTechnician registers the technician workflow routes.  Which
// transitions a technician may drive, and whether assignment matters,
// is decided by the workflow policy inside the handler.
func RegisterTechnician(e *echo.Echo, h *handler.AppointmentHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(workflow.RoleTechnician))

	g.POST("/appointments/:id/status", h.UpdateStatus, limiter)
	g.POST("/appointments/:id/part-requests", h.CreatePartRequest, limiter)
}
