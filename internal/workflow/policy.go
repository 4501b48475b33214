package workflow

import "fmt"

// Role names as stored in the users table and in the JWT "role" claim.
const (
	RoleCustomer   = "CUSTOMER"
	RoleTechnician = "TECHNICIAN"
	RoleStaff      = "STAFF"
	RoleAdmin      = "ADMIN"
)

// The capability table below answers one question: which target statuses
// may a given role drive an appointment into.  Keeping it as data rather
// than branching inside the transition method makes the policy
// independently testable and swappable.

// customerTargets: customers can only cancel, and only their own
// appointment (ownership is checked in roleAllows, not here).
var customerTargets = map[DetailedStatus]bool{
	StatusCancelled: true,
}

// technicianTargets: statuses a technician may drive the work through.
var technicianTargets = map[DetailedStatus]bool{
	StatusInProgress:        true,
	StatusCompleted:         true,
	StatusPartsInsufficient: true,
	StatusPartsRequested:    true,
}

// openToAnyTechnician: targets any technician may set even when they are
// not the assigned one.  Reporting missing parts and marking work done
// must not be blocked on assignment.
var openToAnyTechnician = map[DetailedStatus]bool{
	StatusPartsInsufficient: true,
	StatusCompleted:         true,
}

// staffTargets: staff and admin may perform the full transition set.
var staffTargets = map[DetailedStatus]bool{
	StatusConfirmed:         true,
	StatusCustomerArrived:   true,
	StatusReceptionCreated:  true,
	StatusReceptionApproved: true,
	StatusPartsInsufficient: true,
	StatusWaitingForParts:   true,
	StatusPartsRequested:    true,
	StatusInProgress:        true,
	StatusCompleted:         true,
	StatusInvoiced:          true,
	StatusCancelled:         true,
	StatusCancelRequested:   true,
	StatusCancelApproved:    true,
	StatusCancelRefunded:    true,
	StatusNoShow:            true,
	StatusRescheduled:       true,
}

// TransitionInput carries everything Validate needs to decide whether a
// status change may proceed.  The caller resolves ownership and
// assignment against the loaded appointment before building it.
type TransitionInput struct {
	Current        DetailedStatus
	Target         DetailedStatus
	ActorRole      string
	IsOwner        bool // actor is the appointment's customer
	IsAssignedTech bool // actor is the assigned technician
	HasReception   bool // a service reception record is linked
}

// Validate checks the adjacency list, the role capability table and the
// transition-specific preconditions, in that order.  It returns nil when
// the transition may be applied; the caller then persists the new status
// together with exactly one history entry.
func Validate(in TransitionInput) error {
	if !Known(in.Target) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, in.Target)
	}
	if !CanTransition(in.Current, in.Target) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, in.Current, in.Target)
	}
	if err := roleAllows(in); err != nil {
		return err
	}
	return checkPreconditions(in)
}

// roleAllows consults the capability table for the actor's role.
func roleAllows(in TransitionInput) error {
	switch in.ActorRole {
	case RoleStaff, RoleAdmin:
		if !staffTargets[in.Target] {
			return fmt.Errorf("%w: %s may not set %s", ErrTransitionNotAllowed, in.ActorRole, in.Target)
		}
	case RoleTechnician:
		if !technicianTargets[in.Target] {
			return fmt.Errorf("%w: technicians may not set %s", ErrTransitionNotAllowed, in.Target)
		}
		if !openToAnyTechnician[in.Target] && !in.IsAssignedTech {
			return fmt.Errorf("%w: only the assigned technician may set %s", ErrTransitionNotAllowed, in.Target)
		}
	case RoleCustomer:
		if !customerTargets[in.Target] {
			return fmt.Errorf("%w: customers may not set %s", ErrTransitionNotAllowed, in.Target)
		}
		if !in.IsOwner {
			return fmt.Errorf("%w: customers may only cancel their own appointment", ErrTransitionNotAllowed)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrTransitionNotAllowed, in.ActorRole)
	}
	return nil
}

// checkPreconditions applies the business rules tied to specific target
// statuses.  Adjacency and role have already been verified.
func checkPreconditions(in TransitionInput) error {
	switch in.Target {
	case StatusReceptionApproved:
		// Approval needs an existing reception record unless the
		// appointment is resuming after a parts hold.
		if in.Current == StatusReceptionCreated && !in.HasReception {
			return fmt.Errorf("%w: no service reception linked", ErrPreconditionNotMet)
		}
	case StatusCompleted:
		if in.Current != StatusInProgress {
			return fmt.Errorf("%w: work must be in progress before completion", ErrPreconditionNotMet)
		}
	case StatusInvoiced:
		// reception_approved supports the pre-payment flow.
		if in.Current != StatusCompleted && in.Current != StatusReceptionApproved {
			return fmt.Errorf("%w: invoicing requires completed or approved work", ErrPreconditionNotMet)
		}
	}
	return nil
}
