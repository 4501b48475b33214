package handler

import (
	"context"
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

// AppointmentHandler groups the repositories behind the appointment
// lifecycle: booking, status transitions, reception intake and part
// requests.  JWT authentication and role checks have already run in
// middleware; ownership and assignment are enforced here because they
// depend on the loaded appointment.
type AppointmentHandler struct {
	Appts     *repository.AppointmentRepo
	Demand    *repository.DemandRepo
	Conflicts *repository.ConflictRepo
	Parts     *repository.PartRepo
}

// NewAppointmentHandler constructs the handler.  All dependencies must
// be non-nil.
func NewAppointmentHandler(appts *repository.AppointmentRepo, demand *repository.DemandRepo, conflicts *repository.ConflictRepo, parts *repository.PartRepo) *AppointmentHandler {
	if appts == nil || demand == nil || conflicts == nil || parts == nil {
		panic("nil repository passed to NewAppointmentHandler")
	}
	return &AppointmentHandler{Appts: appts, Demand: demand, Conflicts: conflicts, Parts: parts}
}

// newApptNumber generates the human-readable appointment number.
func newApptNumber() string {
	return "APT-" + strings.ToUpper(uuid.NewString()[:8])
}

// Book handles POST /v1/appointments.  Creates a pending appointment
// owned by the authenticated customer.
func (h *AppointmentHandler) Book(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		VehicleID    uint64     `json:"vehicle_id"`
		ScheduledAt  time.Time  `json:"scheduled_at"`
		Estimated    *time.Time `json:"estimated_completion"`
		DepositCents uint32     `json:"deposit_cents"`
		TotalCents   uint32     `json:"total_cents"`
		DepositPaid  bool       `json:"deposit_paid"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id is required"})
	}
	if !body.ScheduledAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at must be in the future"})
	}

	a := &model.Appointment{
		ApptNumber:          newApptNumber(),
		CustomerID:          userID,
		VehicleID:           body.VehicleID,
		DetailedStatus:      workflow.StatusPending,
		ScheduledAt:         body.ScheduledAt.UTC(),
		EstimatedCompletion: body.Estimated,
		DepositCents:        body.DepositCents,
		TotalCents:          body.TotalCents,
		DepositPaid:         body.DepositPaid,
	}
	if err := h.Appts.Create(c.Request().Context(), a); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// Get handles GET /v1/appointments/:id.  Customers only see their own
// appointment; technicians and staff see any.  The workflow history is
// included.
func (h *AppointmentHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	ctx := c.Request().Context()

	a, err := h.Appts.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if getRole(c) == workflow.RoleCustomer && a.CustomerID != userID {
		// do not leak existence of other customers' appointments
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	history, err := h.Appts.History(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"appointment": a, "workflow_history": history})
}

// ListMine handles GET /v1/my-appointments for the owning customer.
func (h *AppointmentHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	appts, err := h.Appts.ListByCustomer(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"appointments": appts})
}

// GetActions handles GET /v1/appointments/:id/actions.  It returns the
// customer-facing actions currently available, so clients render buttons
// without re-deriving the policy.
func (h *AppointmentHandler) GetActions(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	a, err := h.Appts.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if getRole(c) == workflow.RoleCustomer && a.CustomerID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	now := time.Now().UTC()
	return c.JSON(http.StatusOK, echo.Map{
		"detailed_status": a.DetailedStatus,
		"actions":         workflow.CustomerActions(a.DetailedStatus, a.ScheduledAt, now, a.RescheduleCount),
		"next_statuses":   workflow.NextStatuses(a.DetailedStatus),
	})
}

// UpdateStatus handles POST /v1/appointments/:id/status for technicians
// and staff.  The target transition is validated against the adjacency
// list, the actor's role capabilities and the business preconditions,
// then applied with a compare-and-set so concurrent updates lose cleanly
// with 409.
func (h *AppointmentHandler) UpdateStatus(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	target := workflow.DetailedStatus(strings.TrimSpace(body.Status))
	if target == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
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
	prev := a.DetailedStatus

	in := workflow.TransitionInput{
		Current:        a.DetailedStatus,
		Target:         target,
		ActorRole:      role,
		IsOwner:        role == workflow.RoleCustomer && a.CustomerID == userID,
		IsAssignedTech: a.TechnicianID != nil && *a.TechnicianID == userID,
		HasReception:   a.ReceptionID != nil,
	}
	if err := workflow.Validate(in); err != nil {
		return respondError(c, err)
	}

	// Completion without notes is legal but worth flagging for QA.
	if target == workflow.StatusCompleted && strings.TrimSpace(body.Notes) == "" {
		c.Logger().Warnf("appointment %d completed without notes by user %d", a.ID, userID)
	}

	if err := h.Appts.TransitionTx(ctx, tx, a, target, userID, role, body.Reason, body.Notes); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishStatusChanged(ctx, queue.StatusChangedEvent{
		AppointmentID:  a.ID,
		ApptNumber:     a.ApptNumber,
		CustomerID:     a.CustomerID,
		PreviousStatus: string(prev),
		DetailedStatus: string(a.DetailedStatus),
		CoreStatus:     string(a.CoreStatus),
		ReasonCode:     string(a.ReasonCode),
		ActorID:        userID,
		ActorRole:      role,
		Reason:         body.Reason,
		ChangedAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, a)
}

// AssignTechnician handles POST /v1/staff/appointments/:id/assign.
func (h *AppointmentHandler) AssignTechnician(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		TechnicianID uint64 `json:"technician_id"`
	}
	if err := c.Bind(&body); err != nil || body.TechnicianID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "technician_id is required"})
	}
	ctx := c.Request().Context()
	if _, err := h.Appts.GetByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	if err := h.Appts.AssignTechnician(ctx, id, body.TechnicianID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "technician assigned"})
}

type receptionLineReq struct {
	PartID   uint64 `json:"part_id"`
	Quantity int    `json:"quantity"`
	Priority string `json:"priority"`
}

// CreateReception handles POST /v1/staff/appointments/:id/reception.
// It opens the service reception record with its part lines, moves the
// appointment to reception_created and runs conflict detection for every
// part the new lines touch.
func (h *AppointmentHandler) CreateReception(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		Notes string             `json:"notes"`
		Lines []receptionLineReq `json:"lines"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	lines := make([]model.ReceptionPartLine, 0, len(body.Lines))
	partIDs := make([]uint64, 0, len(body.Lines))
	for _, l := range body.Lines {
		prio := model.Priority(l.Priority)
		if prio == "" {
			prio = model.PriorityNormal
		}
		if l.PartID == 0 || l.Quantity <= 0 || !prio.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each line needs part_id, positive quantity and a valid priority"})
		}
		lines = append(lines, model.ReceptionPartLine{PartID: l.PartID, Quantity: l.Quantity, Priority: prio, RequestedBy: userID})
		partIDs = append(partIDs, l.PartID)
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
	prev := a.DetailedStatus
	if err := workflow.Validate(workflow.TransitionInput{
		Current:   a.DetailedStatus,
		Target:    workflow.StatusReceptionCreated,
		ActorRole: role,
	}); err != nil {
		return respondError(c, err)
	}

	rec := &model.Reception{AppointmentID: a.ID, CreatedBy: userID, Notes: body.Notes}
	if err := h.Demand.CreateReceptionTx(ctx, tx, rec, lines); err != nil {
		return respondError(c, err)
	}
	if err := h.Appts.SetReceptionTx(ctx, tx, a.ID, rec.ID); err != nil {
		return respondError(c, err)
	}
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusReceptionCreated, userID, role, "service reception opened", body.Notes); err != nil {
		return respondError(c, err)
	}
	a.ReceptionID = &rec.ID

	detected := make([]*model.PartConflict, 0)
	for _, partID := range dedupe(partIDs) {
		conf, err := detectConflictTx(ctx, tx, h.Parts, h.Demand, h.Conflicts, partID)
		if err != nil {
			return respondError(c, err)
		}
		if conf != nil {
			detected = append(detected, conf)
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishStatusChanged(ctx, queue.StatusChangedEvent{
		AppointmentID:  a.ID,
		ApptNumber:     a.ApptNumber,
		CustomerID:     a.CustomerID,
		PreviousStatus: string(prev),
		DetailedStatus: string(a.DetailedStatus),
		CoreStatus:     string(a.CoreStatus),
		ActorID:        userID,
		ActorRole:      role,
		Reason:         "service reception opened",
		ChangedAt:      time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"reception":   rec,
		"appointment": a,
		"conflicts":   detected,
	})
}

// CreatePartRequest handles POST /v1/appointments/:id/part-requests for
// technicians.  The standalone request joins the open demand pool; when
// the appointment can move to parts_requested it does, and conflict
// detection runs for the part.
func (h *AppointmentHandler) CreatePartRequest(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid appointment id"})
	}
	var body struct {
		PartID   uint64     `json:"part_id"`
		Quantity int        `json:"quantity"`
		Priority string     `json:"priority"`
		NeededAt *time.Time `json:"needed_at"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	prio := model.Priority(body.Priority)
	if prio == "" {
		prio = model.PriorityNormal
	}
	if body.PartID == 0 || body.Quantity <= 0 || !prio.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "part_id, positive quantity and a valid priority are required"})
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
	prev := a.DetailedStatus

	neededAt := a.ScheduledAt
	if body.NeededAt != nil {
		neededAt = body.NeededAt.UTC()
	}
	pr := &model.PartRequest{
		AppointmentID: a.ID,
		PartID:        body.PartID,
		Quantity:      body.Quantity,
		Priority:      prio,
		NeededAt:      neededAt,
		RequestedBy:   userID,
	}
	if err := h.Demand.CreatePartRequestTx(ctx, tx, pr); err != nil {
		return respondError(c, err)
	}

	// Move the workflow to parts_requested when the current status
	// permits it; from statuses that do not (e.g. in_progress) the
	// request still joins the demand pool.
	transitioned := false
	if workflow.CanTransition(a.DetailedStatus, workflow.StatusPartsRequested) {
		in := workflow.TransitionInput{
			Current:        a.DetailedStatus,
			Target:         workflow.StatusPartsRequested,
			ActorRole:      role,
			IsAssignedTech: a.TechnicianID != nil && *a.TechnicianID == userID,
		}
		if err := workflow.Validate(in); err == nil {
			if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusPartsRequested, userID, role, "part requested", ""); err != nil {
				return respondError(c, err)
			}
			transitioned = true
		}
	}

	conf, err := detectConflictTx(ctx, tx, h.Parts, h.Demand, h.Conflicts, body.PartID)
	if err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	if transitioned {
		_ = queue_publisher.PublishStatusChanged(ctx, queue.StatusChangedEvent{
			AppointmentID:  a.ID,
			ApptNumber:     a.ApptNumber,
			CustomerID:     a.CustomerID,
			PreviousStatus: string(prev),
			DetailedStatus: string(a.DetailedStatus),
			CoreStatus:     string(a.CoreStatus),
			ReasonCode:     string(a.ReasonCode),
			ActorID:        userID,
			ActorRole:      role,
			Reason:         "part requested",
			ChangedAt:      time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"part_request": pr,
		"appointment":  a,
		"conflict":     conf,
	})
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// staffCtx derives a bounded context for staff operations that fan out
// to several queries.
func staffCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 10*time.Second)
}
