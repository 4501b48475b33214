package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/model"
	"github.com/mkarimv/vehicle-service-center/internal/queue"
	"github.com/mkarimv/vehicle-service-center/internal/repository"
	queue_publisher "github.com/mkarimv/vehicle-service-center/internal/service"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// The cancellation flow runs over three dedicated endpoints rather than
// the generic status route: the customer requests with a refund quote
// snapshot, staff approves, and the refund finalizes.  Each step is
// transactional and the snapshot taken at request time is what gets
// refunded, no matter how long approval takes.

// RequestCancellation handles POST /v1/appointments/:id/cancel-request.
// Only the owning customer may request, only from pending/confirmed.
// The refund quote (100% with 24h notice, 80% inside it, based on the
// deposit when paid else the total) is computed and stored atomically
// with the transition to cancel_requested.
func (h *AppointmentHandler) RequestCancellation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	tx, err := h.Appts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := h.Appts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if a.CustomerID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	now := time.Now().UTC()
	quote := workflow.QuoteCancellation(a.DetailedStatus, a.ScheduledAt, now, a.DepositPaid, a.DepositCents, a.TotalCents)
	if !quote.Allowed {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": quote.Reason})
	}

	cr := &model.CancelRequest{
		AppointmentID:     a.ID,
		RefundPercentage:  quote.RefundPercentage,
		BaseAmountCents:   quote.BaseAmountCents,
		RefundAmountCents: quote.RefundAmountCents,
		RequestedBy:       userID,
	}
	if err := h.Appts.CreateCancelRequestTx(ctx, tx, cr); err != nil {
		return respondError(c, err)
	}
	prev := a.DetailedStatus
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusCancelRequested, userID, workflow.RoleCustomer, body.Reason, ""); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishStatusChanged(ctx, statusEvent(a, prev, userID, workflow.RoleCustomer, body.Reason))

	return c.JSON(http.StatusAccepted, echo.Map{
		"appointment": a,
		"quote":       quote,
	})
}

// Cancel handles POST /v1/appointments/:id/cancel: the immediate
// customer cancellation, without the staff approval round-trip.  The
// workflow policy restricts it to the owner's own pending/confirmed
// appointment.
func (h *AppointmentHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	tx, err := h.Appts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := h.Appts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if a.CustomerID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err := workflow.Validate(workflow.TransitionInput{
		Current:   a.DetailedStatus,
		Target:    workflow.StatusCancelled,
		ActorRole: workflow.RoleCustomer,
		IsOwner:   true,
	}); err != nil {
		return respondError(c, err)
	}
	prev := a.DetailedStatus
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusCancelled, userID, workflow.RoleCustomer, body.Reason, ""); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishStatusChanged(ctx, statusEvent(a, prev, userID, workflow.RoleCustomer, body.Reason))

	return c.JSON(http.StatusOK, a)
}

// ApproveCancellation handles POST /v1/staff/appointments/:id/cancel-approve.
func (h *AppointmentHandler) ApproveCancellation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	role := getRole(c)

	ctx := c.Request().Context()
	tx, err := h.Appts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := h.Appts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if a.DetailedStatus != workflow.StatusCancelRequested {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no pending cancellation request"})
	}
	if err := h.Appts.ApproveCancelRequestTx(ctx, tx, a.ID, userID); err != nil {
		return respondError(c, err)
	}
	prev := a.DetailedStatus
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusCancelApproved, userID, role, "cancellation approved", ""); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishStatusChanged(ctx, statusEvent(a, prev, userID, role, "cancellation approved"))

	return c.JSON(http.StatusOK, a)
}

// ProcessRefund handles POST /v1/staff/appointments/:id/refund.  From
// cancel_approved the appointment passes through cancelled on the way to
// cancel_refunded; from cancelled (e.g. a no-notice staff cancellation
// with a deposit to return) it moves straight to cancel_refunded.  The
// refund transaction reference is recorded on the cancel request and
// each hop lands in the workflow history.
func (h *AppointmentHandler) ProcessRefund(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		RefundRef string `json:"refund_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	refundRef := strings.TrimSpace(body.RefundRef)
	if refundRef == "" {
		refundRef = "REF-" + strings.ToUpper(uuid.NewString()[:8])
	}
	role := getRole(c)

	ctx := c.Request().Context()
	tx, err := h.Appts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := h.Appts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if a.DetailedStatus != workflow.StatusCancelApproved && a.DetailedStatus != workflow.StatusCancelled {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "appointment is not awaiting a refund"})
	}

	events := make([]queue.StatusChangedEvent, 0, 2)
	if a.DetailedStatus == workflow.StatusCancelApproved {
		prev := a.DetailedStatus
		if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusCancelled, userID, role, "cancellation finalized", ""); err != nil {
			return respondError(c, err)
		}
		events = append(events, statusEvent(a, prev, userID, role, "cancellation finalized"))
	}
	// A staff-cancelled appointment may have no cancel request to carry
	// the reference; the refund still proceeds.
	if err := h.Appts.SetRefundRefTx(ctx, tx, a.ID, refundRef); err != nil && !errors.Is(err, repository.ErrPrecondition) {
		return respondError(c, err)
	}
	prev := a.DetailedStatus
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusCancelRefunded, userID, role, "refund issued", refundRef); err != nil {
		return respondError(c, err)
	}
	events = append(events, statusEvent(a, prev, userID, role, "refund issued"))

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	for _, ev := range events {
		_ = queue_publisher.PublishStatusChanged(ctx, ev)
	}

	cr, err := h.Appts.GetCancelRequest(ctx, a.ID)
	if err != nil {
		// refund already committed; respond without the snapshot
		return c.JSON(http.StatusOK, echo.Map{"appointment": a, "refund_ref": refundRef})
	}
	return c.JSON(http.StatusOK, echo.Map{"appointment": a, "refund_ref": refundRef, "cancel_request": cr})
}

// Reschedule handles POST /v1/appointments/:id/reschedule for the owning
// customer.  The appointment keeps its identity and status; the time
// moves and the counter increments, capped at two moves with at least
// 24 hours notice.  A failed validation changes nothing.
func (h *AppointmentHandler) Reschedule(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		NewTime time.Time `json:"new_time"`
		Reason  string    `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.NewTime.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_time is required"})
	}

	ctx := c.Request().Context()
	tx, err := h.Appts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	a, err := h.Appts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if a.CustomerID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	now := time.Now().UTC()
	if err := workflow.ValidateReschedule(a.DetailedStatus, a.ScheduledAt, body.NewTime.UTC(), now, a.RescheduleCount); err != nil {
		return respondError(c, err)
	}
	if err := h.Appts.ApplyRescheduleTx(ctx, tx, a, body.NewTime.UTC(), body.Reason); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{
		"appointment":         a,
		"reschedules_used":    a.RescheduleCount,
		"reschedules_allowed": workflow.MaxReschedules,
	})
}
