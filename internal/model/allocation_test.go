package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkRequest(id uint64, qty int, prio Priority, scheduled time.Time) ConflictRequest {
	return ConflictRequest{
		ID:            id,
		ConflictID:    1,
		Source:        DemandSourcePartRequest,
		SourceID:      id,
		AppointmentID: 100 + id,
		Quantity:      qty,
		Priority:      prio,
		ScheduledAt:   scheduled,
		Status:        ConflictRequestPending,
	}
}

func TestSuggestResolutionOrderingAndAllocation(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	// Stock 5: the urgent, earlier request (qty 3) fits; the normal,
	// later one (qty 4) exceeds the remaining 2 and is deferred.
	r1 := mkRequest(1, 3, PriorityUrgent, base)
	r2 := mkRequest(2, 4, PriorityNormal, base.Add(2*time.Hour))
	out := SuggestResolution(5, []ConflictRequest{r2, r1})

	require.Len(t, out, 2)
	assert.Equal(t, uint64(1), out[0].RequestID)
	assert.Equal(t, OutcomeApproved, out[0].Suggested)
	assert.Equal(t, 2, out[0].RemainingAfter)
	assert.Equal(t, uint64(2), out[1].RequestID)
	assert.Equal(t, OutcomeDeferred, out[1].Suggested)
	assert.Equal(t, 2, out[1].RemainingAfter)
}

func TestSuggestResolutionTieBreaks(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	// Same priority: earlier scheduled time first.
	early := mkRequest(7, 1, PriorityHigh, base)
	late := mkRequest(3, 1, PriorityHigh, base.Add(time.Hour))
	out := SuggestResolution(10, []ConflictRequest{late, early})
	assert.Equal(t, uint64(7), out[0].RequestID)

	// Same priority and time: lower ID first.
	a := mkRequest(3, 1, PriorityHigh, base)
	b := mkRequest(7, 1, PriorityHigh, base)
	out = SuggestResolution(10, []ConflictRequest{b, a})
	assert.Equal(t, uint64(3), out[0].RequestID)
}

func TestSuggestResolutionGreedySkipsOversized(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	// The top-priority request does not fit, but a smaller one further
	// down still gets the stock.
	big := mkRequest(1, 8, PriorityUrgent, base)
	small := mkRequest(2, 2, PriorityLow, base)
	out := SuggestResolution(5, []ConflictRequest{big, small})

	assert.Equal(t, OutcomeDeferred, out[0].Suggested)
	assert.Equal(t, OutcomeApproved, out[1].Suggested)
	assert.Equal(t, 3, out[1].RemainingAfter)
}

func TestSuggestResolutionDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	in := []ConflictRequest{
		mkRequest(2, 1, PriorityLow, base),
		mkRequest(1, 1, PriorityUrgent, base),
	}
	_ = SuggestResolution(5, in)
	assert.Equal(t, uint64(2), in[0].ID, "input order must be preserved")
}

func TestPlanBulkResolution(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	reqs := []ConflictRequest{
		mkRequest(1, 3, PriorityUrgent, base),
		mkRequest(2, 4, PriorityNormal, base),
		mkRequest(3, 2, PriorityLow, base),
		mkRequest(4, 1, PriorityLow, base),
	}

	decisions, remaining := PlanBulkResolution(5, reqs, []uint64{1, 2}, []uint64{3})
	require.Len(t, decisions, 4)

	// #1 approved: 3 of 5 consumed.
	assert.Equal(t, OutcomeApproved, decisions[0].Outcome)
	assert.Equal(t, ConflictRequestResolved, decisions[0].Status)

	// #2 approve-listed but only 2 remain: downgraded to deferral with a
	// note, the call does not fail.
	assert.Equal(t, OutcomeDeferred, decisions[1].Outcome)
	assert.Equal(t, ConflictRequestResolved, decisions[1].Status)
	assert.Contains(t, decisions[1].Note, "insufficient stock")

	// #3 rejected unconditionally, consuming nothing.
	assert.Equal(t, OutcomeRejected, decisions[2].Outcome)

	// #4 mentioned nowhere: auto-deferred.
	assert.Equal(t, OutcomeDeferred, decisions[3].Outcome)
	assert.Equal(t, ConflictRequestAutoResolved, decisions[3].Status)
	assert.Contains(t, decisions[3].Note, "not mentioned")

	assert.Equal(t, 2, remaining)
}

func TestPlanBulkResolutionNeverOverdraws(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	reqs := []ConflictRequest{
		mkRequest(1, 4, PriorityHigh, base),
		mkRequest(2, 4, PriorityHigh, base),
		mkRequest(3, 4, PriorityHigh, base),
	}
	decisions, remaining := PlanBulkResolution(5, reqs, []uint64{1, 2, 3}, nil)

	approvedQty := 0
	for _, d := range decisions {
		if d.Outcome == OutcomeApproved {
			approvedQty += d.Request.Quantity
		}
	}
	assert.LessOrEqual(t, approvedQty, 5)
	assert.GreaterOrEqual(t, remaining, 0)
	assert.Equal(t, 1, remaining)
}

func TestPlanBulkResolutionSkipsDecidedRequests(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	decided := mkRequest(1, 2, PriorityHigh, base)
	decided.Status = ConflictRequestResolved
	pending := mkRequest(2, 2, PriorityHigh, base)

	decisions, remaining := PlanBulkResolution(5, []ConflictRequest{decided, pending}, []uint64{1, 2}, nil)
	require.Len(t, decisions, 1)
	assert.Equal(t, uint64(2), decisions[0].Request.ID)
	assert.Equal(t, 3, remaining)
}

func TestPriorityWeights(t *testing.T) {
	assert.Greater(t, PriorityUrgent.Weight(), PriorityHigh.Weight())
	assert.Greater(t, PriorityHigh.Weight(), PriorityNormal.Weight())
	assert.Greater(t, PriorityNormal.Weight(), PriorityLow.Weight())
	assert.True(t, PriorityLow.Valid())
	assert.False(t, Priority("asap").Valid())
}
