package store

import (
	"errors"
	"time"

	"visitor-approval-backend/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrStaleVersion = errors.New("approval was modified concurrently")
)

// Transition is a version-guarded change to a single approval.
type Transition struct {
	ApprovalID string
	Version    int
	At         time.Time
	Updates    map[string]any // column name -> value
	Event      *model.HistoryEvent
}
