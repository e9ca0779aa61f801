package types

import "time"

// Entity carries the bookkeeping timestamps embedded in routes and invoices.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity stamped at the given wall-clock second.
func NewEntity(at int64) Entity {
	t := time.Unix(at, 0).UTC()
	return Entity{
		CreatedAt: t,
		UpdatedAt: t,
	}
}

// Touch moves UpdatedAt to the given second.
func (e *Entity) Touch(at int64) {
	e.UpdatedAt = time.Unix(at, 0).UTC()
}
