package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/handler"
	"github.com/mkarimv/vehicle-service-center/internal/middleware"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// RegisterStaff registers the staff/admin surface: appointment
// management, the cancellation flow, the parts catalogue and conflict
// resolution.  The read-heavy GETs take the response cache; mutating
// routes take the rate limiter.
func RegisterStaff(e *echo.Echo, appts *handler.AppointmentHandler, parts *handler.PartHandler, conflicts *handler.ConflictHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/staff")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(workflow.RoleStaff, workflow.RoleAdmin))

	// appointments
	g.GET("/appointments/:id", appts.Get)
	g.POST("/appointments/:id/status", appts.UpdateStatus, limiter)
	g.POST("/appointments/:id/assign", appts.AssignTechnician, limiter)
	g.POST("/appointments/:id/reception", appts.CreateReception, limiter)
	g.POST("/appointments/:id/cancel-approve", appts.ApproveCancellation, limiter)
	g.POST("/appointments/:id/refund", appts.ProcessRefund, limiter)

	// parts catalogue
	g.POST("/parts", parts.Create, limiter)
	g.GET("/parts", parts.List, cache)
	g.GET("/parts/:id", parts.Get)
	g.POST("/parts/:id/restock", parts.Restock, limiter)

	// conflict resolution
	g.POST("/conflicts/detect", conflicts.Detect, limiter)
	g.GET("/conflicts", conflicts.List, cache)
	g.GET("/conflicts/:id", conflicts.Get)
	g.GET("/conflicts/:id/suggestion", conflicts.Suggestion)
	g.POST("/conflicts/:id/resolve", conflicts.Resolve, limiter)
	g.POST("/conflicts/:id/requests/:rid/approve", conflicts.ApproveRequest, limiter)
	g.POST("/conflicts/:id/requests/:rid/reject", conflicts.RejectRequest, limiter)
}
