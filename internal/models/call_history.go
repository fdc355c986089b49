// Package models holds the GORM models persisted by the console.
package models

import "time"

// Call directions for CallHistoryEntry.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// CallHistoryEntry is one audited call attempt. Entries are append-only:
// later information (who actually accepted) patches RelatedClientID in
// place, nothing is ever reordered or individually deleted.
type CallHistoryEntry struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CallID          string `gorm:"size:36;uniqueIndex;not null"`
	Direction       string `gorm:"size:3;not null"`
	Label           string `gorm:"size:128"`
	RelatedClientID string `gorm:"size:64"`
	CreatedAt       time.Time
}
