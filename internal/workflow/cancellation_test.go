package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteCancellationRefundWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// 25 hours notice: full refund.
	q := QuoteCancellation(StatusConfirmed, now.Add(25*time.Hour), now, false, 5000, 20000)
	require.True(t, q.Allowed)
	assert.Equal(t, 100, q.RefundPercentage)
	assert.Equal(t, uint32(20000), q.BaseAmountCents)
	assert.Equal(t, uint32(20000), q.RefundAmountCents)

	// Exactly 24 hours still counts as full notice.
	q = QuoteCancellation(StatusPending, now.Add(24*time.Hour), now, false, 5000, 20000)
	require.True(t, q.Allowed)
	assert.Equal(t, 100, q.RefundPercentage)

	// Just inside the window: 80%.
	q = QuoteCancellation(StatusConfirmed, now.Add(24*time.Hour-time.Minute), now, false, 5000, 20000)
	require.True(t, q.Allowed)
	assert.Equal(t, 80, q.RefundPercentage)
	assert.Equal(t, uint32(16000), q.RefundAmountCents)
}

func TestQuoteCancellationBaseAmount(t *testing.T) {
	now := time.Now().UTC()
	scheduled := now.Add(3 * time.Hour) // inside the notice window, 80%

	// With a paid deposit the refund base is the deposit.
	q := QuoteCancellation(StatusConfirmed, scheduled, now, true, 5000, 20000)
	require.True(t, q.Allowed)
	assert.Equal(t, uint32(5000), q.BaseAmountCents)
	assert.Equal(t, uint32(4000), q.RefundAmountCents)

	// Without one, it is the full quoted total.
	q = QuoteCancellation(StatusConfirmed, scheduled, now, false, 5000, 20000)
	require.True(t, q.Allowed)
	assert.Equal(t, uint32(20000), q.BaseAmountCents)
	assert.Equal(t, uint32(16000), q.RefundAmountCents)
}

func TestQuoteCancellationOnlyFromEarlyStatuses(t *testing.T) {
	now := time.Now().UTC()
	for _, s := range []DetailedStatus{
		StatusCustomerArrived, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusInvoiced, StatusCancelRequested,
	} {
		q := QuoteCancellation(s, now.Add(48*time.Hour), now, false, 0, 10000)
		assert.False(t, q.Allowed, "cancellation from %s should not be allowed", s)
		assert.NotEmpty(t, q.Reason)
		assert.Zero(t, q.RefundAmountCents)
	}
}

func TestValidateReschedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scheduled := now.Add(48 * time.Hour)
	newTime := now.Add(96 * time.Hour)

	assert.NoError(t, ValidateReschedule(StatusPending, scheduled, newTime, now, 0))
	assert.NoError(t, ValidateReschedule(StatusConfirmed, scheduled, newTime, now, 1))

	// Third reschedule is refused and the error names the cap.
	err := ValidateReschedule(StatusConfirmed, scheduled, newTime, now, MaxReschedules)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	assert.Contains(t, err.Error(), "maximum")

	// Less than 24 hours notice.
	err = ValidateReschedule(StatusConfirmed, now.Add(12*time.Hour), newTime, now, 0)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	// New time in the past.
	err = ValidateReschedule(StatusConfirmed, scheduled, now.Add(-time.Hour), now, 0)
	assert.ErrorIs(t, err, ErrValidation)

	// Wrong status.
	err = ValidateReschedule(StatusInProgress, scheduled, newTime, now, 0)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
}

func TestCustomerActions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	actions := CustomerActions(StatusConfirmed, now.Add(48*time.Hour), now, 0)
	assert.ElementsMatch(t, []string{ActionCancel, ActionRequestCancellation, ActionReschedule}, actions)

	// Inside the notice window rescheduling drops off but cancellation
	// (at reduced refund) stays.
	actions = CustomerActions(StatusConfirmed, now.Add(6*time.Hour), now, 0)
	assert.ElementsMatch(t, []string{ActionCancel, ActionRequestCancellation}, actions)

	// Reschedule cap reached.
	actions = CustomerActions(StatusPending, now.Add(48*time.Hour), now, MaxReschedules)
	assert.NotContains(t, actions, ActionReschedule)

	// Nothing from later statuses.
	assert.Empty(t, CustomerActions(StatusInProgress, now.Add(48*time.Hour), now, 0))
	assert.Empty(t, CustomerActions(StatusCancelled, now.Add(48*time.Hour), now, 0))
}
