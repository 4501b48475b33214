package model

import (
	"time"

	"github.com/mkarimv/vehicle-service-center/internal/workflow"
)

// Appointment is the long-lived booking record driving the whole service
// workflow.  DetailedStatus is the source of truth; CoreStatus and
// ReasonCode are recomputed from it on every persist and stored only for
// query convenience.  Appointments are never deleted: terminal statuses
// are retained for audit.
//
// Fields:
//  ID                  – primary key identifier.
//  ApptNumber          – human-readable sequence number ("APT-xxxxxxxx").
//  CustomerID          – owning customer.
//  VehicleID           – vehicle being serviced.
//  TechnicianID        – assigned technician (nullable until assignment).
//  ReceptionID         – linked service reception record (nullable).
//  InvoiceRef          – external invoice reference (nullable).
//  DetailedStatus      – fine-grained workflow state.
//  CoreStatus          – derived six-value projection.
//  ReasonCode          – derived hold/closure reason, empty otherwise.
//  ScheduledAt         – booked service time.
//  ArrivedAt           – stamped once on customer_arrived.
//  CompletedAt         – stamped on completed.
//  EstimatedCompletion – cleared on terminal failure statuses.
//  RescheduleCount     – number of reschedules performed (max 2).
//  DepositCents        – deposit amount in cents.
//  TotalCents          – total quoted amount in cents.
//  DepositPaid         – whether the deposit was captured.
type Appointment struct {
	ID                  uint64                  `json:"id"`
	ApptNumber          string                  `json:"appt_number"`
	CustomerID          uint64                  `json:"customer_id"`
	VehicleID           uint64                  `json:"vehicle_id"`
	TechnicianID        *uint64                 `json:"technician_id,omitempty"`
	ReceptionID         *uint64                 `json:"reception_id,omitempty"`
	InvoiceRef          *string                 `json:"invoice_ref,omitempty"`
	DetailedStatus      workflow.DetailedStatus `json:"detailed_status"`
	CoreStatus          workflow.CoreStatus     `json:"core_status"`
	ReasonCode          workflow.ReasonCode     `json:"reason_code,omitempty"`
	ScheduledAt         time.Time               `json:"scheduled_at"`
	ArrivedAt           *time.Time              `json:"arrived_at,omitempty"`
	CompletedAt         *time.Time              `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time              `json:"estimated_completion,omitempty"`
	RescheduleCount     int                     `json:"reschedule_count"`
	DepositCents        uint32                  `json:"deposit_cents"`
	TotalCents          uint32                  `json:"total_cents"`
	DepositPaid         bool                    `json:"deposit_paid"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// WorkflowEntry is one append-only history row.  Every successful status
// change appends exactly one entry recording the status *before* the
// change; entries are owned by the appointment and never edited.
type WorkflowEntry struct {
	ID             uint64                  `json:"id"`
	AppointmentID  uint64                  `json:"appointment_id"`
	PreviousStatus workflow.DetailedStatus `json:"previous_status"`
	ActorID        uint64                  `json:"actor_id"`
	ActorRole      string                  `json:"actor_role"`
	Reason         string                  `json:"reason,omitempty"`
	Notes          string                  `json:"notes,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

// CancelRequest snapshots the refund computation taken when the customer
// asked to cancel.  It exists only while the cancellation flow is active
// or as a record of a completed one.
type CancelRequest struct {
	AppointmentID     uint64     `json:"appointment_id"`
	RefundPercentage  int        `json:"refund_percentage"`
	BaseAmountCents   uint32     `json:"base_amount_cents"`
	RefundAmountCents uint32     `json:"refund_amount_cents"`
	RefundRef         *string    `json:"refund_ref,omitempty"`
	RequestedBy       uint64     `json:"requested_by"`
	RequestedAt       time.Time  `json:"requested_at"`
	ApprovedBy        *uint64    `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
}

// Reschedule records one executed reschedule of an appointment.
type Reschedule struct {
	ID            uint64    `json:"id"`
	AppointmentID uint64    `json:"appointment_id"`
	OldTime       time.Time `json:"old_time"`
	NewTime       time.Time `json:"new_time"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Vehicle is the serviced vehicle.  Kept minimal; the service core only
// needs the reference.
type Vehicle struct {
	ID         uint64    `json:"id"`
	CustomerID uint64    `json:"customer_id"`
	Plate      string    `json:"plate"`
	Make       string    `json:"make"`
	Model      string    `json:"model"`
	Year       int       `json:"year,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
