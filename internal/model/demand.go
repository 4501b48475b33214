package model

import "time"

// Priority orders competing demand for the same part.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Weight returns the numeric weight used by the canonical fairness
// ordering: urgent=4 down to low=1.  Unknown priorities sort last.
func (p Priority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool { return p.Weight() > 0 }

// DemandSource names the concrete record a demand request came from.
type DemandSource string

const (
	// DemandSourceReceptionLine is a part line inside a service
	// reception record.
	DemandSourceReceptionLine DemandSource = "reception_line"
	// DemandSourcePartRequest is a standalone part request filed by a
	// technician against an appointment.
	DemandSourcePartRequest DemandSource = "part_request"
)

// DemandRequest is the uniform view over both demand shapes.  The
// resolver only ever works with this abstraction; approving or rejecting
// it flips the flag on the owning record, whichever table that lives in.
type DemandRequest struct {
	Source        DemandSource `json:"source"`
	SourceID      uint64       `json:"source_id"`
	AppointmentID uint64       `json:"appointment_id"`
	ReceptionID   *uint64      `json:"reception_id,omitempty"`
	PartID        uint64       `json:"part_id"`
	Quantity      int          `json:"quantity"`
	Priority      Priority     `json:"priority"`
	ScheduledAt   time.Time    `json:"scheduled_at"`
	RequestedBy   uint64       `json:"requested_by"`
	Approved      bool         `json:"approved"`
	Rejected      bool         `json:"rejected"`
}

// Reception is the service reception record opened when a vehicle is
// checked in and inspected.  Its part lines are the first demand source.
type Reception struct {
	ID            uint64    `json:"id"`
	AppointmentID uint64    `json:"appointment_id"`
	CreatedBy     uint64    `json:"created_by"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReceptionPartLine is one part requirement inside a reception.
type ReceptionPartLine struct {
	ID          uint64    `json:"id"`
	ReceptionID uint64    `json:"reception_id"`
	PartID      uint64    `json:"part_id"`
	Quantity    int       `json:"quantity"`
	Priority    Priority  `json:"priority"`
	Approved    bool      `json:"approved"`
	Rejected    bool      `json:"rejected"`
	RequestedBy uint64    `json:"requested_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// PartRequest is a standalone part request, the second demand source.
// Status is pending until it is approved or rejected through conflict
// resolution (or directly when no conflict exists).
type PartRequest struct {
	ID            uint64    `json:"id"`
	AppointmentID uint64    `json:"appointment_id"`
	PartID        uint64    `json:"part_id"`
	Quantity      int       `json:"quantity"`
	Priority      Priority  `json:"priority"`
	Status        string    `json:"status"` // pending | approved | rejected
	NeededAt      time.Time `json:"needed_at"`
	RequestedBy   uint64    `json:"requested_by"`
	CreatedAt     time.Time `json:"created_at"`
}
