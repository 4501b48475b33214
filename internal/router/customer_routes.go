package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/handler"
	"github.com/mkarimv/vehicle-service-center/internal/middleware"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// RegisterCustomer registers the customer-facing appointment routes.
// Ownership of the targeted appointment is enforced in the handlers,
// since it depends on the loaded row.
func RegisterCustomer(e *echo.Echo, h *handler.AppointmentHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(workflow.RoleCustomer))

	g.POST("/appointments", h.Book, limiter)
	g.GET("/my-appointments", h.ListMine)
	g.GET("/appointments/:id", h.Get)
	g.GET("/appointments/:id/actions", h.GetActions)
	g.POST("/appointments/:id/cancel", h.Cancel, limiter)
	g.POST("/appointments/:id/cancel-request", h.RequestCancellation, limiter)
	g.POST("/appointments/:id/reschedule", h.Reschedule, limiter)
}
