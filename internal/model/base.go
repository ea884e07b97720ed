package model

import "time"

type (
	// A Model is a generic database record.
	Model interface {
		// GetID returns the record's identifier.
		GetID() string
		// SetID defines the record's identifier.
		SetID(id string)
		// SetCreatedAt defines the record's creation time.
		SetCreatedAt(t time.Time)
		// SetUpdatedAt defines the record's last update time.
		SetUpdatedAt(t time.Time)
	}

	// Base holds the fields shared by all the records.
	Base struct {
		ID        string    `json:"id"         storm:"id"`
		CreatedAt time.Time `json:"created_at" storm:"index"`
		UpdatedAt time.Time `json:"updated_at" storm:"index"`
	}
)

// GetID returns the record's identifier.
func (m *Base) GetID() string {
	return m.ID
}

// SetID defines the record's identifier.
func (m *Base) SetID(id string) {
	m.ID = id
}

// SetCreatedAt defines the record's creation time.
func (m *Base) SetCreatedAt(t time.Time) {
	m.CreatedAt = t
}

// SetUpdatedAt defines the record's last update time.
func (m *Base) SetUpdatedAt(t time.Time) {
	m.UpdatedAt = t
}
