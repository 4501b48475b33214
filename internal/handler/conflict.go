package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/model"
	"github.com/mkarimv/vehicle-service-center/internal/queue"
	"github.com/mkarimv/vehicle-service-center/internal/repository"
	queue_publisher "github.com/mkarimv/vehicle-service-center/internal/service"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// ConflictHandler carries the staff-facing conflict resolution surface:
// detection, listing, the advisory suggestion, bulk resolution and
// per-request approve/reject.
//
// Every stock-affecting path locks the part row first, so overlapping
// resolutions for the same part serialize and current_stock can never be
// overdrawn.  The aggregate row is locked too, making each member
// request decidable exactly once.
type ConflictHandler struct {
	Conflicts *repository.ConflictRepo
	Parts     *repository.PartRepo
	Demand    *repository.DemandRepo
	Appts     *repository.AppointmentRepo
}

func NewConflictHandler(conflicts *repository.ConflictRepo, parts *repository.PartRepo, demand *repository.DemandRepo, appts *repository.AppointmentRepo) *ConflictHandler {
	if conflicts == nil || parts == nil || demand == nil || appts == nil {
		panic("nil repository passed to NewConflictHandler")
	}
	return &ConflictHandler{Conflicts: conflicts, Parts: parts, Demand: demand, Appts: appts}
}

// Detect handles POST /v1/staff/conflicts/detect.  With a part_id in the
// body only that part is checked; otherwise every part with open demand
// is swept.  Each part is checked in its own transaction so a failure on
// one part does not discard findings on the others.
func (h *ConflictHandler) Detect(c echo.Context) error {
	var body struct {
		PartID uint64 `json:"part_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx, cancel := staffCtx(c)
	defer cancel()

	partIDs := []uint64{body.PartID}
	if body.PartID == 0 {
		ids, err := h.Demand.PartsWithOpenDemand(ctx)
		if err != nil {
			return respondError(c, err)
		}
		partIDs = ids
	}

	detected := make([]*model.PartConflict, 0)
	for _, partID := range partIDs {
		conf, err := h.detectOne(ctx, partID)
		if err != nil {
			return respondError(c, err)
		}
		if conf != nil {
			detected = append(detected, conf)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"conflicts": detected, "checked_parts": len(partIDs)})
}

func (h *ConflictHandler) detectOne(ctx context.Context, partID uint64) (*model.PartConflict, error) {
	tx, err := h.Conflicts.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	conf, err := detectConflictTx(ctx, tx, h.Parts, h.Demand, h.Conflicts, partID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return conf, nil
}

// List handles GET /v1/staff/conflicts with an optional ?status= filter.
func (h *ConflictHandler) List(c echo.Context) error {
	status := model.ConflictStatus(c.QueryParam("status"))
	if status != "" && status != model.ConflictPending && status != model.ConflictResolved {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be PENDING or RESOLVED"})
	}
	conflicts, err := h.Conflicts.List(c.Request().Context(), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"conflicts": conflicts})
}

// Get handles GET /v1/staff/conflicts/:id.
func (h *ConflictHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conflict id"})
	}
	conf, err := h.Conflicts.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, conf)
}

// Suggestion handles GET /v1/staff/conflicts/:id/suggestion.  It runs
// the canonical fairness ordering (priority weight desc, scheduled time
// asc, ID as tie-break) against the part's *live* stock and returns the
// advisory allocation.  Nothing is persisted.
func (h *ConflictHandler) Suggestion(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conflict id"})
	}
	ctx := c.Request().Context()

	conf, err := h.Conflicts.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	part, err := h.Parts.GetByID(ctx, conf.PartID)
	if err != nil {
		return respondError(c, err)
	}
	pending := make([]model.ConflictRequest, 0, len(conf.Requests))
	for _, r := range conf.Requests {
		if r.Status == model.ConflictRequestPending {
			pending = append(pending, r)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"conflict_id":     conf.ID,
		"conflict_number": conf.ConflictNumber,
		"available_stock": part.CurrentStock,
		"suggestions":     model.SuggestResolution(part.CurrentStock, pending),
	})
}

// Resolve handles POST /v1/staff/conflicts/:id/resolve, the bulk path.
// The caller names requests to approve and to reject; everything else
// still pending is auto-deferred.  Approvals are granted in
// aggregate-stored order while stock lasts; an approval that no longer
// fits is downgraded to deferral instead of failing the call.  The
// aggregate always closes.
func (h *ConflictHandler) Resolve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conflict id"})
	}
	var body struct {
		ApproveIDs []uint64 `json:"approve_ids"`
		RejectIDs  []uint64 `json:"reject_ids"`
		Notes      string   `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	role := getRole(c)

	ctx := c.Request().Context()
	tx, err := h.Conflicts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	conf, err := h.Conflicts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if conf.Status != model.ConflictPending {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "conflict already resolved"})
	}
	part, err := h.Parts.GetForUpdateTx(ctx, tx, conf.PartID)
	if err != nil {
		return respondError(c, err)
	}

	decisions, remaining := model.PlanBulkResolution(part.CurrentStock, conf.Requests, body.ApproveIDs, body.RejectIDs)

	var approved, deferred, rejected int
	events := make([]queue.StatusChangedEvent, 0)
	for _, d := range decisions {
		if err := h.Conflicts.MarkRequestTx(ctx, tx, d.Request.ID, d.Status, d.Outcome, d.Note); err != nil {
			return respondError(c, err)
		}
		switch d.Outcome {
		case model.OutcomeApproved:
			approved++
			if err := h.Parts.ApplyApprovalTx(ctx, tx, conf.PartID, d.Request.Quantity); err != nil {
				return respondError(c, err)
			}
			if err := h.Demand.ApproveTx(ctx, tx, d.Request.Source, d.Request.SourceID); err != nil {
				return respondError(c, err)
			}
			evs, err := h.approvalSideEffectsTx(ctx, tx, d.Request, userID, role)
			if err != nil {
				return respondError(c, err)
			}
			events = append(events, evs...)
		case model.OutcomeRejected:
			rejected++
			if err := h.Demand.RejectTx(ctx, tx, d.Request.Source, d.Request.SourceID); err != nil {
				return respondError(c, err)
			}
			evs, err := h.rejectionSideEffectsTx(ctx, tx, d.Request, userID, role, d.Note)
			if err != nil {
				return respondError(c, err)
			}
			events = append(events, evs...)
		default:
			deferred++
		}
	}

	if err := h.Conflicts.MarkResolvedTx(ctx, tx, conf.ID, userID, body.Notes); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	resolvedAt := time.Now().UTC().Format(time.RFC3339)
	_ = queue_publisher.PublishConflictResolved(ctx, queue.ConflictResolvedEvent{
		ConflictID:     conf.ID,
		ConflictNumber: conf.ConflictNumber,
		PartID:         conf.PartID,
		Approved:       approved,
		Deferred:       deferred,
		Rejected:       rejected,
		RemainingStock: remaining,
		ResolvedBy:     userID,
		ResolvedAt:     resolvedAt,
	})
	for _, ev := range events {
		_ = queue_publisher.PublishStatusChanged(ctx, ev)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"conflict_id":     conf.ID,
		"conflict_number": conf.ConflictNumber,
		"approved":        approved,
		"deferred":        deferred,
		"rejected":        rejected,
		"remaining_stock": remaining,
	})
}

// ApproveRequest handles POST /v1/staff/conflicts/:id/requests/:rid/approve,
// the single-request path.  The decision is made against the part's live
// stock read under the row lock, never the aggregate's snapshot: stock
// may have been restocked or consumed since detection.
func (h *ConflictHandler) ApproveRequest(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conflict id"})
	}
	rid, ok := pathID(c, "rid")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	role := getRole(c)

	ctx := c.Request().Context()
	tx, err := h.Conflicts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	conf, err := h.Conflicts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if conf.Status != model.ConflictPending {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "conflict already resolved"})
	}
	req, ok := findPendingRequest(conf, rid)
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "request not pending in this conflict"})
	}

	part, err := h.Parts.GetForUpdateTx(ctx, tx, conf.PartID)
	if err != nil {
		return respondError(c, err)
	}
	if part.CurrentStock < req.Quantity {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "insufficient stock for approval",
			"requested":       req.Quantity,
			"available_stock": part.CurrentStock,
		})
	}

	if err := h.Parts.ApplyApprovalTx(ctx, tx, conf.PartID, req.Quantity); err != nil {
		return respondError(c, err)
	}
	if err := h.Demand.ApproveTx(ctx, tx, req.Source, req.SourceID); err != nil {
		return respondError(c, err)
	}
	if err := h.Conflicts.MarkRequestTx(ctx, tx, req.ID, model.ConflictRequestResolved, model.OutcomeApproved, ""); err != nil {
		return respondError(c, err)
	}

	events, err := h.approvalSideEffectsTx(ctx, tx, req, userID, role)
	if err != nil {
		return respondError(c, err)
	}

	closed, err := h.closeIfDoneTx(ctx, tx, conf.ID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	for _, ev := range events {
		_ = queue_publisher.PublishStatusChanged(ctx, ev)
	}
	if closed {
		_ = queue_publisher.PublishConflictResolved(ctx, queue.ConflictResolvedEvent{
			ConflictID:     conf.ID,
			ConflictNumber: conf.ConflictNumber,
			PartID:         conf.PartID,
			Approved:       1,
			RemainingStock: part.CurrentStock - req.Quantity,
			ResolvedBy:     userID,
			ResolvedAt:     time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"request_id":      req.ID,
		"outcome":         model.OutcomeApproved,
		"remaining_stock": part.CurrentStock - req.Quantity,
		"conflict_closed": closed,
	})
}

// RejectRequest handles POST /v1/staff/conflicts/:id/requests/:rid/reject.
// Rejection never touches stock; the owning appointment is parked in
// parts_insufficient with a customer-visible reason when its current
// status allows it.
func (h *ConflictHandler) RejectRequest(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conflict id"})
	}
	rid, ok := pathID(c, "rid")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	role := getRole(c)

	ctx := c.Request().Context()
	tx, err := h.Conflicts.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	conf, err := h.Conflicts.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if conf.Status != model.ConflictPending {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "conflict already resolved"})
	}
	req, ok := findPendingRequest(conf, rid)
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "request not pending in this conflict"})
	}

	if err := h.Demand.RejectTx(ctx, tx, req.Source, req.SourceID); err != nil {
		return respondError(c, err)
	}
	if err := h.Conflicts.MarkRequestTx(ctx, tx, req.ID, model.ConflictRequestResolved, model.OutcomeRejected, body.Reason); err != nil {
		return respondError(c, err)
	}
	events, err := h.rejectionSideEffectsTx(ctx, tx, req, userID, role, body.Reason)
	if err != nil {
		return respondError(c, err)
	}

	closed, err := h.closeIfDoneTx(ctx, tx, conf.ID, userID)
	if err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	for _, ev := range events {
		_ = queue_publisher.PublishStatusChanged(ctx, ev)
	}
	if closed {
		_ = queue_publisher.PublishConflictResolved(ctx, queue.ConflictResolvedEvent{
			ConflictID:     conf.ID,
			ConflictNumber: conf.ConflictNumber,
			PartID:         conf.PartID,
			Rejected:       1,
			ResolvedBy:     userID,
			ResolvedAt:     time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"request_id":      req.ID,
		"outcome":         model.OutcomeRejected,
		"conflict_closed": closed,
	})
}

func findPendingRequest(conf *model.PartConflict, requestID uint64) (model.ConflictRequest, bool) {
	for _, r := range conf.Requests {
		if r.ID == requestID && r.Status == model.ConflictRequestPending {
			return r, true
		}
	}
	return model.ConflictRequest{}, false
}

// closeIfDoneTx marks the aggregate resolved when no member request is
// still pending.
func (h *ConflictHandler) closeIfDoneTx(ctx context.Context, tx *sql.Tx, conflictID, resolvedBy uint64) (bool, error) {
	pending, err := h.Conflicts.PendingCountTx(ctx, tx, conflictID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}
	if err := h.Conflicts.MarkResolvedTx(ctx, tx, conflictID, resolvedBy, ""); err != nil {
		return false, err
	}
	return true, nil
}

// approvalSideEffectsTx advances the owning appointment after an
// approval.  When the approved demand was the last undecided part line
// of its reception, the appointment moves to reception_approved; an
// appointment parked on a parts hold moves back the same way.
func (h *ConflictHandler) approvalSideEffectsTx(ctx context.Context, tx *sql.Tx, req model.ConflictRequest, actorID uint64, actorRole string) ([]queue.StatusChangedEvent, error) {
	a, err := h.Appts.GetForUpdateTx(ctx, tx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if req.Source == model.DemandSourceReceptionLine && a.ReceptionID != nil {
		unapproved, err := h.Demand.UnapprovedCountForReceptionTx(ctx, tx, *a.ReceptionID)
		if err != nil {
			return nil, err
		}
		if unapproved > 0 {
			return nil, nil
		}
	}
	if !workflow.CanTransition(a.DetailedStatus, workflow.StatusReceptionApproved) {
		return nil, nil
	}
	in := workflow.TransitionInput{
		Current:      a.DetailedStatus,
		Target:       workflow.StatusReceptionApproved,
		ActorRole:    actorRole,
		HasReception: a.ReceptionID != nil,
	}
	if err := workflow.Validate(in); err != nil {
		return nil, nil // cannot advance from here, the approval itself stands
	}
	prev := a.DetailedStatus
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusReceptionApproved, actorID, actorRole, "parts approved", ""); err != nil {
		return nil, err
	}
	return []queue.StatusChangedEvent{statusEvent(a, prev, actorID, actorRole, "parts approved")}, nil
}

// rejectionSideEffectsTx parks the owning appointment in
// parts_insufficient when its current status allows it.  The reason is
// customer-visible through the workflow history.
func (h *ConflictHandler) rejectionSideEffectsTx(ctx context.Context, tx *sql.Tx, req model.ConflictRequest, actorID uint64, actorRole, reason string) ([]queue.StatusChangedEvent, error) {
	a, err := h.Appts.GetForUpdateTx(ctx, tx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanTransition(a.DetailedStatus, workflow.StatusPartsInsufficient) {
		return nil, nil
	}
	if reason == "" {
		reason = "required part is unavailable"
	}
	prev := a.DetailedStatus
	if err := h.Appts.TransitionTx(ctx, tx, a, workflow.StatusPartsInsufficient, actorID, actorRole, reason, ""); err != nil {
		return nil, err
	}
	return []queue.StatusChangedEvent{statusEvent(a, prev, actorID, actorRole, reason)}, nil
}

func statusEvent(a *model.Appointment, prev workflow.DetailedStatus, actorID uint64, actorRole, reason string) queue.StatusChangedEvent {
	return queue.StatusChangedEvent{
		AppointmentID:  a.ID,
		ApptNumber:     a.ApptNumber,
		CustomerID:     a.CustomerID,
		PreviousStatus: string(prev),
		DetailedStatus: string(a.DetailedStatus),
		CoreStatus:     string(a.CoreStatus),
		ReasonCode:     string(a.ReasonCode),
		ActorID:        actorID,
		ActorRole:      actorRole,
		Reason:         reason,
		ChangedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
