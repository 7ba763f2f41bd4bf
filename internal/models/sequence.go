package models

import "time"

// SequenceCounter is the persisted per-scope counter row.
type SequenceCounter struct {
	Scope     string    `json:"scope" db:"scope"`
	Value     int64     `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
