// Package workflow implements the appointment lifecycle: the detailed
// status enumeration, the derived core status and reason code, the fixed
// transition adjacency and the per-role capability table.  Everything in
// this package is pure computation over plain values so that the policy
// can be tested without a database.  Persistence and side effects live in
// the repository and handler layers.
package workflow

// DetailedStatus is the fine-grained workflow state of an appointment.
// It is the single source of truth; CoreStatus and ReasonCode are always
// recomputed from it and never stored independently.
type DetailedStatus string

const (
	StatusPending           DetailedStatus = "pending"
	StatusConfirmed         DetailedStatus = "confirmed"
	StatusCustomerArrived   DetailedStatus = "customer_arrived"
	StatusReceptionCreated  DetailedStatus = "reception_created"
	StatusReceptionApproved DetailedStatus = "reception_approved"
	StatusPartsInsufficient DetailedStatus = "parts_insufficient"
	StatusWaitingForParts   DetailedStatus = "waiting_for_parts"
	StatusPartsRequested    DetailedStatus = "parts_requested"
	StatusInProgress        DetailedStatus = "in_progress"
	StatusCompleted         DetailedStatus = "completed"
	StatusInvoiced          DetailedStatus = "invoiced"
	StatusCancelled         DetailedStatus = "cancelled"
	StatusCancelRequested   DetailedStatus = "cancel_requested"
	StatusCancelApproved    DetailedStatus = "cancel_approved"
	StatusCancelRefunded    DetailedStatus = "cancel_refunded"
	StatusNoShow            DetailedStatus = "no_show"
	StatusRescheduled       DetailedStatus = "rescheduled"
)

// CoreStatus is the coarse six-value projection of DetailedStatus used by
// dashboards and reporting.
type CoreStatus string

const (
	CoreScheduled      CoreStatus = "SCHEDULED"
	CoreCheckedIn      CoreStatus = "CHECKED_IN"
	CoreInService      CoreStatus = "IN_SERVICE"
	CoreOnHold         CoreStatus = "ON_HOLD"
	CoreReadyForPickup CoreStatus = "READY_FOR_PICKUP"
	CoreClosed         CoreStatus = "CLOSED"
)

// ReasonCode explains why an appointment is on hold or closed.  It is
// empty for every other core status.
type ReasonCode string

const (
	ReasonInsufficientParts   ReasonCode = "insufficient_parts"
	ReasonCancellationPending ReasonCode = "cancellation_pending"
	ReasonCompleted           ReasonCode = "completed"
	ReasonCancelled           ReasonCode = "cancelled"
	ReasonNoShow              ReasonCode = "no_show"
	ReasonRescheduled         ReasonCode = "rescheduled"
)

// derivation maps every detailed status to its core status and reason.
var derivation = map[DetailedStatus]struct {
	Core   CoreStatus
	Reason ReasonCode
}{
	StatusPending:           {CoreScheduled, ""},
	StatusConfirmed:         {CoreScheduled, ""},
	StatusCustomerArrived:   {CoreCheckedIn, ""},
	StatusReceptionCreated:  {CoreCheckedIn, ""},
	StatusReceptionApproved: {CoreInService, ""},
	StatusInProgress:        {CoreInService, ""},
	StatusPartsInsufficient: {CoreOnHold, ReasonInsufficientParts},
	StatusWaitingForParts:   {CoreOnHold, ReasonInsufficientParts},
	StatusPartsRequested:    {CoreOnHold, ReasonInsufficientParts},
	StatusCancelRequested:   {CoreOnHold, ReasonCancellationPending},
	StatusCancelApproved:    {CoreOnHold, ReasonCancellationPending},
	StatusCompleted:         {CoreReadyForPickup, ""},
	StatusInvoiced:          {CoreReadyForPickup, ""},
	StatusCancelled:         {CoreClosed, ReasonCancelled},
	StatusCancelRefunded:    {CoreClosed, ReasonCancelled},
	StatusNoShow:            {CoreClosed, ReasonNoShow},
	StatusRescheduled:       {CoreClosed, ReasonRescheduled},
}

// Known reports whether s is a member of the detailed status enumeration.
func Known(s DetailedStatus) bool {
	_, ok := derivation[s]
	return ok
}

// Derive returns the core status and reason code for a detailed status.
// Callers must invoke this on every persist rather than storing the two
// derived fields on their own; unknown statuses derive to empty values.
func Derive(s DetailedStatus) (CoreStatus, ReasonCode) {
	d, ok := derivation[s]
	if !ok {
		return "", ""
	}
	return d.Core, d.Reason
}

// IsTerminal reports whether no further transitions leave s.  Terminal
// appointments are retained for audit, never deleted.
func IsTerminal(s DetailedStatus) bool {
	return len(allowedNext[s]) == 0
}

// allowedNext is the fixed adjacency list of the state machine.  A
// transition not present here fails regardless of the caller's role.
var allowedNext = map[DetailedStatus][]DetailedStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCancelRequested, StatusRescheduled, StatusNoShow},
	StatusConfirmed: {StatusCustomerArrived, StatusCancelled, StatusCancelRequested, StatusRescheduled, StatusNoShow},

	StatusCustomerArrived:   {StatusReceptionCreated, StatusCancelled},
	StatusReceptionCreated:  {StatusReceptionApproved, StatusPartsInsufficient, StatusPartsRequested},
	StatusReceptionApproved: {StatusInProgress, StatusPartsInsufficient, StatusInvoiced},

	StatusPartsInsufficient: {StatusWaitingForParts, StatusPartsRequested, StatusCancelled},
	StatusWaitingForParts:   {StatusReceptionApproved, StatusPartsRequested, StatusCancelled},
	StatusPartsRequested:    {StatusWaitingForParts, StatusReceptionApproved, StatusCancelled},

	StatusInProgress: {StatusCompleted, StatusPartsInsufficient},
	StatusCompleted:  {StatusInvoiced},

	StatusCancelRequested: {StatusCancelApproved, StatusConfirmed},
	StatusCancelApproved:  {StatusCancelled},
	StatusCancelled:       {StatusCancelRefunded},

	StatusInvoiced:       {},
	StatusCancelRefunded: {},
	StatusNoShow:         {},
	StatusRescheduled:    {},
}

// CanTransition reports whether the adjacency list contains the edge
// from -> to.  Role and business preconditions are checked separately.
func CanTransition(from, to DetailedStatus) bool {
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the adjacency list entry for s.
func NextStatuses(s DetailedStatus) []DetailedStatus {
	next := allowedNext[s]
	out := make([]DetailedStatus, len(next))
	copy(out, next)
	return out
}
