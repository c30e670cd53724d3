package model

import "time"

// HistoryEventType names what happened to an approval.
type HistoryEventType string

const (
	EventEntry     HistoryEventType = "entry"
	EventExit      HistoryEventType = "exit"
	EventCancelled HistoryEventType = "cancelled"
	EventExpired   HistoryEventType = "expired"
)

// HistoryEvent is an append-only log line used for display. The approval
// row stays authoritative.
type HistoryEvent struct {
	ID           int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ApprovalID   string           `gorm:"index;size:36;not null" json:"approvalId"`
	ResidentID   string           `gorm:"index;size:64;not null" json:"residentId"`
	ApprovalCode string           `gorm:"size:16;not null" json:"approvalCode"`
	VisitorName  string           `gorm:"size:128;not null" json:"visitorName"`
	Type         HistoryEventType `gorm:"size:16;not null" json:"type"`
	OfficerID    string           `gorm:"size:64" json:"officerId,omitempty"`
	OfficerName  string           `gorm:"size:128" json:"officerName,omitempty"`
	OccurredAt   time.Time        `gorm:"index;not null" json:"occurredAt"`
}
