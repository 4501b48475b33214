package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/mkarimv/vehicle-service-center/internal/model"
	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// AppointmentRepo provides persistence for appointments, their
// append-only workflow history, cancel requests and reschedules.
//
// Status changes go through TransitionTx exclusively.  It performs a
// compare-and-set on detailed_status so that two concurrent transitions
// on the same appointment are serialized: the loser's UPDATE matches
// zero rows and the call fails with ErrConflict, leaving exactly one
// history entry for the one transition that happened.
type AppointmentRepo struct{ DB *sql.DB }

func NewAppointmentRepo(db *sql.DB) *AppointmentRepo { return &AppointmentRepo{DB: db} }

const appointmentCols = `id, appt_number, customer_id, vehicle_id, technician_id, reception_id,
	invoice_ref, detailed_status, core_status, reason_code, scheduled_at, arrived_at,
	completed_at, estimated_completion, reschedule_count, deposit_cents, total_cents,
	deposit_paid, created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	var (
		a          model.Appointment
		reasonCode sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.ApptNumber, &a.CustomerID, &a.VehicleID, &a.TechnicianID, &a.ReceptionID,
		&a.InvoiceRef, &a.DetailedStatus, &a.CoreStatus, &reasonCode, &a.ScheduledAt, &a.ArrivedAt,
		&a.CompletedAt, &a.EstimatedCompletion, &a.RescheduleCount, &a.DepositCents, &a.TotalCents,
		&a.DepositPaid, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reasonCode.Valid {
		a.ReasonCode = workflow.ReasonCode(reasonCode.String)
	}
	return &a, nil
}

// Create inserts a new appointment.  The caller supplies the detailed
// status (bookings start as pending); the derived fields are computed
// here so they can never be set independently.
func (r *AppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	core, reason := workflow.Derive(a.DetailedStatus)
	a.CoreStatus = core
	a.ReasonCode = reason
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO appointments
		 (appt_number, customer_id, vehicle_id, detailed_status, core_status, reason_code,
		  scheduled_at, estimated_completion, deposit_cents, total_cents, deposit_paid)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ApptNumber, a.CustomerID, a.VehicleID, a.DetailedStatus, core, nullableReason(reason),
		a.ScheduledAt, a.EstimatedCompletion, a.DepositCents, a.TotalCents, a.DepositPaid)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByID loads one appointment; ErrNotFound when absent.
func (r *AppointmentRepo) GetByID(ctx context.Context, id uint64) (*model.Appointment, error) {
	a, err := scanAppointment(r.DB.QueryRowContext(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// GetForUpdateTx loads one appointment under an exclusive row lock so
// that the caller's transition or resolution decision is serialized
// against concurrent writers of the same appointment.
func (r *AppointmentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Appointment, error) {
	a, err := scanAppointment(tx.QueryRowContext(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = ? FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// ListByCustomer returns a customer's appointments, newest first.
func (r *AppointmentRepo) ListByCustomer(ctx context.Context, customerID uint64) ([]model.Appointment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE customer_id = ? ORDER BY scheduled_at DESC`,
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// History returns the append-only workflow history, oldest first.
func (r *AppointmentRepo) History(ctx context.Context, appointmentID uint64) ([]model.WorkflowEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, appointment_id, previous_status, actor_id, actor_role, reason, notes, created_at
		 FROM appointment_history WHERE appointment_id = ? ORDER BY id`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WorkflowEntry, 0)
	for rows.Next() {
		var e model.WorkflowEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.PreviousStatus, &e.ActorID, &e.ActorRole, &e.Reason, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TransitionTx applies a validated status change inside tx.  It stamps
// the status-specific side effects, recomputes the derived fields,
// updates the row with a compare-and-set on the previous status, and
// appends exactly one history entry recording the status before the
// change.  ErrConflict is returned when a concurrent transition won the
// race; the caller must roll back.
func (r *AppointmentRepo) TransitionTx(ctx context.Context, tx *sql.Tx, a *model.Appointment, target workflow.DetailedStatus, actorID uint64, actorRole, reason, notes string) error {
	prev := a.DetailedStatus
	core, reasonCode := workflow.Derive(target)

	now := time.Now().UTC()
	arrivedAt := a.ArrivedAt
	completedAt := a.CompletedAt
	estimated := a.EstimatedCompletion
	switch target {
	case workflow.StatusCustomerArrived:
		if arrivedAt == nil {
			arrivedAt = &now
		}
	case workflow.StatusCompleted:
		completedAt = &now
	case workflow.StatusCancelled, workflow.StatusNoShow, workflow.StatusRescheduled:
		estimated = nil
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE appointments
		 SET detailed_status=?, core_status=?, reason_code=?, arrived_at=?, completed_at=?,
		     estimated_completion=?, updated_at=NOW()
		 WHERE id=? AND detailed_status=?`,
		target, core, nullableReason(reasonCode), arrivedAt, completedAt, estimated, a.ID, prev)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO appointment_history (appointment_id, previous_status, actor_id, actor_role, reason, notes)
		 VALUES (?,?,?,?,?,?)`,
		a.ID, prev, actorID, actorRole, reason, notes); err != nil {
		return err
	}

	a.DetailedStatus = target
	a.CoreStatus = core
	a.ReasonCode = reasonCode
	a.ArrivedAt = arrivedAt
	a.CompletedAt = completedAt
	a.EstimatedCompletion = estimated
	return nil
}

// SetReceptionTx links a freshly created reception record.
func (r *AppointmentRepo) SetReceptionTx(ctx context.Context, tx *sql.Tx, appointmentID, receptionID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE appointments SET reception_id=?, updated_at=NOW() WHERE id=?`,
		receptionID, appointmentID)
	return err
}

// AssignTechnician sets the assigned technician for an appointment.
func (r *AppointmentRepo) AssignTechnician(ctx context.Context, appointmentID, technicianID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE appointments SET technician_id=?, updated_at=NOW() WHERE id=?`,
		technicianID, appointmentID)
	return err
}

// CreateCancelRequestTx snapshots the refund computation taken when the
// customer requested cancellation.
func (r *AppointmentRepo) CreateCancelRequestTx(ctx context.Context, tx *sql.Tx, cr *model.CancelRequest) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cancel_requests (appointment_id, refund_percentage, base_amount_cents, refund_amount_cents, requested_by)
		 VALUES (?,?,?,?,?)`,
		cr.AppointmentID, cr.RefundPercentage, cr.BaseAmountCents, cr.RefundAmountCents, cr.RequestedBy)
	return err
}

// GetCancelRequest loads the active cancel request for an appointment.
func (r *AppointmentRepo) GetCancelRequest(ctx context.Context, appointmentID uint64) (*model.CancelRequest, error) {
	var cr model.CancelRequest
	err := r.DB.QueryRowContext(ctx,
		`SELECT appointment_id, refund_percentage, base_amount_cents, refund_amount_cents,
		        refund_ref, requested_by, requested_at, approved_by, approved_at
		 FROM cancel_requests WHERE appointment_id = ?`,
		appointmentID).Scan(&cr.AppointmentID, &cr.RefundPercentage, &cr.BaseAmountCents,
		&cr.RefundAmountCents, &cr.RefundRef, &cr.RequestedBy, &cr.RequestedAt, &cr.ApprovedBy, &cr.ApprovedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// ApproveCancelRequestTx records staff approval on the cancel request.
func (r *AppointmentRepo) ApproveCancelRequestTx(ctx context.Context, tx *sql.Tx, appointmentID, approvedBy uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cancel_requests SET approved_by=?, approved_at=NOW()
		 WHERE appointment_id=? AND approved_at IS NULL`,
		approvedBy, appointmentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPrecondition
	}
	return nil
}

// SetRefundRefTx records the refund transaction reference that
// finalizes the cancellation flow.
func (r *AppointmentRepo) SetRefundRefTx(ctx context.Context, tx *sql.Tx, appointmentID uint64, refundRef string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cancel_requests SET refund_ref=? WHERE appointment_id=? AND refund_ref IS NULL`,
		refundRef, appointmentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPrecondition
	}
	return nil
}

// ApplyRescheduleTx moves the appointment to a new time, increments the
// reschedule counter and records the move.  The counter guard makes the
// cap race-safe: a concurrent reschedule that bumped the counter first
// causes a zero-row match here and ErrConflict.
func (r *AppointmentRepo) ApplyRescheduleTx(ctx context.Context, tx *sql.Tx, a *model.Appointment, newTime time.Time, reason string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE appointments SET scheduled_at=?, reschedule_count=reschedule_count+1, updated_at=NOW()
		 WHERE id=? AND reschedule_count=?`,
		newTime, a.ID, a.RescheduleCount)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reschedules (appointment_id, old_time, new_time, reason) VALUES (?,?,?,?)`,
		a.ID, a.ScheduledAt, newTime, reason); err != nil {
		return err
	}
	a.ScheduledAt = newTime
	a.RescheduleCount++
	return nil
}

func nullableReason(rc workflow.ReasonCode) any {
	if rc == "" {
		return nil
	}
	return string(rc)
}
