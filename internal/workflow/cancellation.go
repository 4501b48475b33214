package workflow

import (
	"fmt"
	"time"
)

const (
	// fullRefundNotice is the minimum notice before the scheduled time
	// that still earns a 100% refund; inside it the refund drops to 80%.
	fullRefundNotice = 24 * time.Hour

	// rescheduleNotice is the minimum notice required to reschedule.
	rescheduleNotice = 24 * time.Hour

	// MaxReschedules caps how many times one appointment may be moved.
	MaxReschedules = 2
)

// CancellationQuote is the snapshot taken when a customer requests
// cancellation.  It is stored on the appointment's cancel request record
// so the refund amount cannot drift between request and approval.
type CancellationQuote struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	RefundPercentage  int    `json:"refund_percentage"`
	BaseAmountCents   uint32 `json:"base_amount_cents"`
	RefundAmountCents uint32 `json:"refund_amount_cents"`
}

// QuoteCancellation computes whether a customer may cancel and how much
// would be refunded.  Cancellation is only open from pending/confirmed.
// 100% is refunded with at least 24h notice, 80% otherwise; the base is
// the deposit when one was paid, else the total amount.
func QuoteCancellation(status DetailedStatus, scheduledAt, now time.Time, depositPaid bool, depositCents, totalCents uint32) CancellationQuote {
	if status != StatusPending && status != StatusConfirmed {
		return CancellationQuote{Reason: fmt.Sprintf("appointment in status %s cannot be cancelled by the customer", status)}
	}
	pct := 80
	if scheduledAt.Sub(now) >= fullRefundNotice {
		pct = 100
	}
	base := totalCents
	if depositPaid {
		base = depositCents
	}
	return CancellationQuote{
		Allowed:           true,
		RefundPercentage:  pct,
		BaseAmountCents:   base,
		RefundAmountCents: uint32(uint64(base) * uint64(pct) / 100),
	}
}

// ValidateReschedule checks whether an appointment may be moved to
// newTime.  Failures carry a descriptive reason and the caller must not
// mutate any rescheduling state when an error is returned.
func ValidateReschedule(status DetailedStatus, scheduledAt, newTime, now time.Time, rescheduleCount int) error {
	if status != StatusPending && status != StatusConfirmed {
		return fmt.Errorf("%w: appointment in status %s cannot be rescheduled", ErrPreconditionNotMet, status)
	}
	if rescheduleCount >= MaxReschedules {
		return fmt.Errorf("%w: already rescheduled %d times, maximum is %d", ErrPreconditionNotMet, rescheduleCount, MaxReschedules)
	}
	if scheduledAt.Sub(now) < rescheduleNotice {
		return fmt.Errorf("%w: rescheduling requires at least 24 hours notice", ErrPreconditionNotMet)
	}
	if !newTime.After(now) {
		return fmt.Errorf("%w: new time must be in the future", ErrValidation)
	}
	return nil
}

// Customer-facing action names returned by CustomerActions.
const (
	ActionCancel              = "cancel"
	ActionRequestCancellation = "request_cancellation"
	ActionReschedule          = "reschedule"
)

// CustomerActions lists what the owning customer may currently do with
// the appointment.  External callers use this to render buttons without
// re-deriving the policy.
func CustomerActions(status DetailedStatus, scheduledAt, now time.Time, rescheduleCount int) []string {
	actions := []string{}
	if status == StatusPending || status == StatusConfirmed {
		actions = append(actions, ActionCancel, ActionRequestCancellation)
		if rescheduleCount < MaxReschedules && scheduledAt.Sub(now) >= rescheduleNotice {
			actions = append(actions, ActionReschedule)
		}
	}
	return actions
}
