// Package queue defines message payloads exchanged over the message broker.
package queue

// StatusChangedEvent is published after every successful appointment
// status transition.  It carries enough for downstream notification and
// analytics consumers to act without querying the primary database.
type StatusChangedEvent struct {
	AppointmentID  uint64 `json:"appointment_id"`
	ApptNumber     string `json:"appt_number"`
	CustomerID     uint64 `json:"customer_id"`
	PreviousStatus string `json:"previous_status"`
	DetailedStatus string `json:"detailed_status"`
	CoreStatus     string `json:"core_status"`
	ReasonCode     string `json:"reason_code,omitempty"`
	ActorID        uint64 `json:"actor_id"`
	ActorRole      string `json:"actor_role"`
	Reason         string `json:"reason,omitempty"`
	ChangedAt      string `json:"changed_at"`
}

// ConflictResolvedEvent is published when a part conflict aggregate is
// closed, whether by the bulk path or by the last single-request
// decision.
type ConflictResolvedEvent struct {
	ConflictID     uint64 `json:"conflict_id"`
	ConflictNumber string `json:"conflict_number"`
	PartID         uint64 `json:"part_id"`
	Approved       int    `json:"approved"`
	Deferred       int    `json:"deferred"`
	Rejected       int    `json:"rejected"`
	RemainingStock int    `json:"remaining_stock"`
	ResolvedBy     uint64 `json:"resolved_by"`
	ResolvedAt     string `json:"resolved_at"`
}
