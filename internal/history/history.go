// Package history keeps the append-only, time-ordered record of call
// attempts for audit and redial.
package history

import (
	"fmt"
	"strings"

	"github.com/crosswire/intercom/internal/models"
	"github.com/crosswire/intercom/internal/protocol"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LabelFunc resolves a station id to its configured display label lines.
// Nil or empty results fall back to raw ids.
type LabelFunc func(protocol.StationID) []string

// LogOpts holds parameters for creating a Log.
type LogOpts struct {
	DB       *gorm.DB
	LabelFor LabelFunc // optional
}

// Log records call attempts. Entries are keyed by call id and append-only;
// only Clear removes them.
type Log struct {
	db       *gorm.DB
	labelFor LabelFunc
}

// NewLog creates a Log backed by the given database.
func NewLog(opts LogOpts) (*Log, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("history: db is required")
	}
	return &Log{db: opts.DB, labelFor: opts.LabelFor}, nil
}

// RecordOutgoing appends an entry for a call this console originated.
// Re-recording a known call id is a no-op.
func (l *Log) RecordOutgoing(id protocol.CallID, target protocol.CallTarget) error {
	entry := models.CallHistoryEntry{
		CallID:          string(id),
		Direction:       models.DirectionOut,
		Label:           l.label(target.Station, target.Position, target.Client),
		RelatedClientID: string(target.Client),
	}
	return l.append(entry)
}

// RecordIncoming appends an entry for an invite this console received.
// Re-recording a known call id is a no-op.
func (l *Log) RecordIncoming(id protocol.CallID, source protocol.CallSource) error {
	entry := models.CallHistoryEntry{
		CallID:          string(id),
		Direction:       models.DirectionIn,
		Label:           l.label(source.StationID, source.PositionID, source.ClientID),
		RelatedClientID: string(source.ClientID),
	}
	return l.append(entry)
}

func (l *Log) append(entry models.CallHistoryEntry) error {
	err := l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "call_id"}},
		DoNothing: true,
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("history: record %s call %s: %w", entry.Direction, entry.CallID, err)
	}
	return nil
}

// PatchRelatedClient updates an existing entry with the client that
// actually took the call. Unknown call ids are a no-op; patching never
// creates entries.
func (l *Log) PatchRelatedClient(id protocol.CallID, client protocol.ClientID) error {
	err := l.db.Model(&models.CallHistoryEntry{}).
		Where("call_id = ?", string(id)).
		Update("related_client_id", string(client)).Error
	if err != nil {
		return fmt.Errorf("history: patch call %s: %w", id, err)
	}
	return nil
}

// Entries returns the full log in record order.
func (l *Log) Entries() ([]models.CallHistoryEntry, error) {
	var entries []models.CallHistoryEntry
	if err := l.db.Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded entries.
func (l *Log) Count() (int64, error) {
	var n int64
	if err := l.db.Model(&models.CallHistoryEntry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Clear empties the log.
func (l *Log) Clear() error {
	if err := l.db.Where("1 = 1").Delete(&models.CallHistoryEntry{}).Error; err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// label derives the display label: configured station label, then raw
// position id, then raw client id, then empty.
func (l *Log) label(station protocol.StationID, position protocol.PositionID, client protocol.ClientID) string {
	if station != "" && l.labelFor != nil {
		if lines := l.labelFor(station); len(lines) > 0 {
			return strings.Join(lines, " ")
		}
	}
	if position != "" {
		return string(position)
	}
	return string(client)
}
