// Package entity provides base types shared by persisted domain entities.
package entity

import (
	"time"

	"lotkeeper/internal/core/id"
)

// Base contains fields common to all persisted entities.
// Version implements optimistic locking: every successful update increments
// it, and concurrent writers with a stale version are rejected.
type Base struct {
	ID        id.ID     `db:"id" json:"id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBase creates a Base with a fresh ID and version 1.
func NewBase() Base {
	now := time.Now().UTC()
	return Base{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the modification timestamp.
func (b *Base) Touch() {
	b.UpdatedAt = time.Now().UTC()
}
