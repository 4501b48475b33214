package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCoversEveryStatus(t *testing.T) {
	cases := []struct {
		status DetailedStatus
		core   CoreStatus
		reason ReasonCode
	}{
		{StatusPending, CoreScheduled, ""},
		{StatusConfirmed, CoreScheduled, ""},
		{StatusCustomerArrived, CoreCheckedIn, ""},
		{StatusReceptionCreated, CoreCheckedIn, ""},
		{StatusReceptionApproved, CoreInService, ""},
		{StatusInProgress, CoreInService, ""},
		{StatusPartsInsufficient, CoreOnHold, ReasonInsufficientParts},
		{StatusWaitingForParts, CoreOnHold, ReasonInsufficientParts},
		{StatusPartsRequested, CoreOnHold, ReasonInsufficientParts},
		{StatusCancelRequested, CoreOnHold, ReasonCancellationPending},
		{StatusCancelApproved, CoreOnHold, ReasonCancellationPending},
		{StatusCompleted, CoreReadyForPickup, ""},
		{StatusInvoiced, CoreReadyForPickup, ""},
		{StatusCancelled, CoreClosed, ReasonCancelled},
		{StatusCancelRefunded, CoreClosed, ReasonCancelled},
		{StatusNoShow, CoreClosed, ReasonNoShow},
		{StatusRescheduled, CoreClosed, ReasonRescheduled},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			require.True(t, Known(tc.status))
			core, reason := Derive(tc.status)
			assert.Equal(t, tc.core, core)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestDeriveIsPure(t *testing.T) {
	// Same input, same output, regardless of how often or in what order.
	for i := 0; i < 3; i++ {
		core, reason := Derive(StatusPartsInsufficient)
		assert.Equal(t, CoreOnHold, core)
		assert.Equal(t, ReasonInsufficientParts, reason)
	}
	core, reason := Derive(DetailedStatus("bogus"))
	assert.Empty(t, core)
	assert.Empty(t, reason)
	assert.False(t, Known(DetailedStatus("bogus")))
}

func TestAdjacency(t *testing.T) {
	allowed := []struct{ from, to DetailedStatus }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusNoShow},
		{StatusConfirmed, StatusCustomerArrived},
		{StatusCustomerArrived, StatusReceptionCreated},
		{StatusReceptionCreated, StatusReceptionApproved},
		{StatusReceptionCreated, StatusPartsInsufficient},
		{StatusReceptionApproved, StatusInProgress},
		{StatusReceptionApproved, StatusInvoiced},
		{StatusPartsInsufficient, StatusWaitingForParts},
		{StatusWaitingForParts, StatusReceptionApproved},
		{StatusPartsRequested, StatusReceptionApproved},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusPartsInsufficient},
		{StatusCompleted, StatusInvoiced},
		{StatusCancelRequested, StatusCancelApproved},
		{StatusCancelRequested, StatusConfirmed},
		{StatusCancelApproved, StatusCancelled},
		{StatusCancelled, StatusCancelRefunded},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	forbidden := []struct{ from, to DetailedStatus }{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusCompleted},
		{StatusConfirmed, StatusReceptionApproved},
		{StatusReceptionCreated, StatusCompleted},
		{StatusCompleted, StatusInProgress}, // no going back
		{StatusInvoiced, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{StatusNoShow, StatusConfirmed},
		{StatusRescheduled, StatusPending},
		{StatusCancelRefunded, StatusCancelled},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be forbidden", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []DetailedStatus{StatusInvoiced, StatusCancelRefunded, StatusNoShow, StatusRescheduled}
	for _, s := range terminal {
		assert.True(t, IsTerminal(s), "%s should be terminal", s)
		assert.Empty(t, NextStatuses(s))
	}
	for s := range derivation {
		if IsTerminal(s) {
			continue
		}
		assert.NotEmpty(t, NextStatuses(s), "%s should have outgoing transitions", s)
	}
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	first := NextStatuses(StatusPending)
	require.NotEmpty(t, first)
	first[0] = StatusInvoiced
	assert.NotEqual(t, first[0], NextStatuses(StatusPending)[0])
}
