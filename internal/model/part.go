package model

import "time"

// Part is one stocked part with its inventory counters.  CurrentStock is
// the number of units available for allocation right now and never goes
// negative; UsedStock accumulates the units consumed by completed
// approvals.  Within this core both counters are mutated only by the
// conflict resolver, by exactly the approved quantity.
//
// ReservedStock is maintained by the ordering subsystem elsewhere in the
// product; conflict detection and resolution deliberately ignore it and
// work off CurrentStock alone.
type Part struct {
	ID             uint64    `json:"id"`
	PartNumber     string    `json:"part_number"`
	Name           string    `json:"name"`
	CurrentStock   int       `json:"current_stock"`
	UsedStock      int       `json:"used_stock"`
	ReservedStock  int       `json:"reserved_stock"`
	UnitPriceCents uint32    `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
