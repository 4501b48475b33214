package model

import "time"

// ConflictStatus is the overall state of a conflict aggregate.  A
// resolved aggregate is never re-opened; a fresh shortfall on the same
// part creates a new one.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "PENDING"
	ConflictResolved ConflictStatus = "RESOLVED"
)

// ConflictRequestStatus tracks each member request independently of the
// aggregate.  auto_resolved marks requests the bulk path defaulted to
// deferral because the resolver mentioned them in neither list.
type ConflictRequestStatus string

const (
	ConflictRequestPending      ConflictRequestStatus = "pending"
	ConflictRequestResolved     ConflictRequestStatus = "resolved"
	ConflictRequestAutoResolved ConflictRequestStatus = "auto_resolved"
)

// ResolutionOutcome is the decision recorded for a member request once
// it leaves pending.
type ResolutionOutcome string

const (
	OutcomeApproved ResolutionOutcome = "approved"
	OutcomeDeferred ResolutionOutcome = "deferred"
	OutcomeRejected ResolutionOutcome = "rejected"
)

// PartConflict groups all open demand requests competing for one part
// whose total demand exceeded available stock at detection time.  The
// stock fields are a snapshot taken by detection; single-request
// resolution re-reads live stock instead of trusting them.
type PartConflict struct {
	ID              uint64            `json:"id"`
	ConflictNumber  string            `json:"conflict_number"`
	PartID          uint64            `json:"part_id"`
	AvailableStock  int               `json:"available_stock"`
	TotalRequested  int               `json:"total_requested"`
	Shortfall       int               `json:"shortfall"`
	Status          ConflictStatus    `json:"status"`
	ResolvedBy      *uint64           `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
	ResolutionNotes string            `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Requests        []ConflictRequest `json:"requests"`
}

// ConflictRequest is one competing demand request as captured inside the
// aggregate.  The rows are owned by the conflict and carry their own
// status; the underlying demand record keeps its approval flag.
type ConflictRequest struct {
	ID            uint64                `json:"id"`
	ConflictID    uint64                `json:"conflict_id"`
	Source        DemandSource          `json:"source"`
	SourceID      uint64                `json:"source_id"`
	AppointmentID uint64                `json:"appointment_id"`
	Quantity      int                   `json:"quantity"`
	Priority      Priority              `json:"priority"`
	ScheduledAt   time.Time             `json:"scheduled_at"`
	Status        ConflictRequestStatus `json:"status"`
	Outcome       ResolutionOutcome     `json:"outcome,omitempty"`
	Note          string                `json:"note,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}
