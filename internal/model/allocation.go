package model

import (
	"fmt"
	"sort"
)

// This file holds the pure allocation logic of the conflict resolver.
// Nothing here touches the database: the handler loads the aggregate and
// the live stock under a row lock, asks these functions for decisions,
// then applies them inside the same transaction.

// SuggestedAllocation is one row of the advisory resolution ordering.
type SuggestedAllocation struct {
	RequestID      uint64            `json:"request_id"`
	Source         DemandSource      `json:"source"`
	SourceID       uint64            `json:"source_id"`
	AppointmentID  uint64            `json:"appointment_id"`
	Quantity       int               `json:"quantity"`
	Priority       Priority          `json:"priority"`
	Suggested      ResolutionOutcome `json:"suggested"`
	RemainingAfter int               `json:"remaining_after"`
}

// SuggestResolution computes the canonical fairness ordering: priority
// weight descending, then scheduled time ascending, request ID as the
// final tie-break.  It walks the ordered list greedily allocating from
// availableStock; a request whose quantity fits the running counter is
// suggested approved, otherwise suggested deferred.  The input is not
// mutated and no stock changes hands — this is advisory only.
func SuggestResolution(availableStock int, requests []ConflictRequest) []SuggestedAllocation {
	ordered := make([]ConflictRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		if wi, wj := ordered[i].Priority.Weight(), ordered[j].Priority.Weight(); wi != wj {
			return wi > wj
		}
		if !ordered[i].ScheduledAt.Equal(ordered[j].ScheduledAt) {
			return ordered[i].ScheduledAt.Before(ordered[j].ScheduledAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	remaining := availableStock
	out := make([]SuggestedAllocation, 0, len(ordered))
	for _, req := range ordered {
		s := SuggestedAllocation{
			RequestID:     req.ID,
			Source:        req.Source,
			SourceID:      req.SourceID,
			AppointmentID: req.AppointmentID,
			Quantity:      req.Quantity,
			Priority:      req.Priority,
			Suggested:     OutcomeDeferred,
		}
		if req.Quantity <= remaining {
			remaining -= req.Quantity
			s.Suggested = OutcomeApproved
		}
		s.RemainingAfter = remaining
		out = append(out, s)
	}
	return out
}

// ResolutionDecision is the planned fate of one member request in a bulk
// resolution call.
type ResolutionDecision struct {
	Request ConflictRequest
	Status  ConflictRequestStatus
	Outcome ResolutionOutcome
	Note    string
}

// PlanBulkResolution decides every still-pending member request of an
// aggregate given explicit approve and reject id lists.  Requests are
// processed in aggregate-stored order.  An approve-listed request is
// approved only while its quantity fits the stock remaining after the
// approvals already granted earlier in this same plan; overflow is
// deferred with an explanatory note rather than failing the whole call.
// Reject-listed requests are rejected unconditionally.  Requests in
// neither list are auto-deferred.  The returned remaining counter never
// goes negative.
func PlanBulkResolution(availableStock int, requests []ConflictRequest, approveIDs, rejectIDs []uint64) ([]ResolutionDecision, int) {
	approve := make(map[uint64]bool, len(approveIDs))
	for _, id := range approveIDs {
		approve[id] = true
	}
	reject := make(map[uint64]bool, len(rejectIDs))
	for _, id := range rejectIDs {
		reject[id] = true
	}

	remaining := availableStock
	decisions := make([]ResolutionDecision, 0, len(requests))
	for _, req := range requests {
		if req.Status != ConflictRequestPending {
			continue
		}
		d := ResolutionDecision{Request: req, Status: ConflictRequestResolved}
		switch {
		case reject[req.ID]:
			d.Outcome = OutcomeRejected
		case approve[req.ID]:
			if req.Quantity <= remaining {
				remaining -= req.Quantity
				d.Outcome = OutcomeApproved
			} else {
				d.Outcome = OutcomeDeferred
				d.Note = fmt.Sprintf("insufficient stock: requested %d, %d remaining", req.Quantity, remaining)
			}
		default:
			d.Status = ConflictRequestAutoResolved
			d.Outcome = OutcomeDeferred
			d.Note = "not mentioned in resolution, deferred"
		}
		decisions = append(decisions, d)
	}
	return decisions, remaining
}
