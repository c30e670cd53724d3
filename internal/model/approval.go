package model

import "time"

// ApprovalStatus is the stored status of an approval. Expired and completed
// are derived from the window and the entry/exit timestamps.
type ApprovalStatus string

const (
	StatusApproved  ApprovalStatus = "approved"
	StatusCancelled ApprovalStatus = "cancelled"
)

// Purpose is the declared reason for a visit.
type Purpose string

const (
	PurposeMeeting  Purpose = "meeting"
	PurposePersonal Purpose = "personal"
	PurposeDelivery Purpose = "delivery"
	PurposeRepair   Purpose = "repair"
	PurposeGuest    Purpose = "guest"
	PurposeOther    Purpose = "other"
)

// Purposes lists every accepted purpose.
var Purposes = []Purpose{
	PurposeMeeting, PurposePersonal, PurposeDelivery,
	PurposeRepair, PurposeGuest, PurposeOther,
}

// Approval is a resident's advance authorization for a visitor to enter
// during a bounded window on a single day.
type Approval struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	// Codes are unique within a scope; the scope leads the index so it also
	// serves scope-filtered lists.
	ApprovalCode string `gorm:"uniqueIndex:idx_approvals_scope_code,priority:2;size:16;not null" json:"approvalCode"`
	Scope        string `gorm:"uniqueIndex:idx_approvals_scope_code,priority:1;size:64;not null" json:"scope"`

	VisitorName   string  `gorm:"size:128;not null" json:"visitorName"`
	MobileNumber  string  `gorm:"index;size:16;not null" json:"mobileNumber"`
	Purpose       Purpose `gorm:"size:16;not null" json:"purpose"`
	VehicleNumber string  `gorm:"size:16" json:"vehicleNumber,omitempty"`

	DateOfVisit string    `gorm:"size:10;not null" json:"dateOfVisit"` // YYYY-MM-DD in Timezone
	StartTime   string    `gorm:"size:5;not null" json:"startTime"`    // HH:MM
	EndTime     string    `gorm:"size:5;not null" json:"endTime"`      // HH:MM
	Timezone    string    `gorm:"size:64;not null" json:"timezone"`
	WindowStart time.Time `gorm:"not null" json:"windowStart"`
	WindowEnd   time.Time `gorm:"not null" json:"windowEnd"`

	ResidentID   string `gorm:"index;size:64;not null" json:"residentId"`
	ResidentName string `gorm:"size:128;not null" json:"residentName"`
	FlatNumber   string `gorm:"size:32;not null" json:"flatNumber"`

	Status              ApprovalStatus `gorm:"index;size:16;not null" json:"status"`
	EntryTime           *time.Time     `json:"entryTime"`
	ExitTime            *time.Time     `json:"exitTime"`
	SecurityOfficerID   string         `gorm:"size:64" json:"securityOfficerId,omitempty"`
	SecurityOfficerName string         `gorm:"size:128" json:"securityOfficerName,omitempty"`
	CancelledAt         *time.Time     `json:"cancelledAt,omitempty"`
	ExpiryRecordedAt    *time.Time     `json:"-"`

	Version   int       `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// ApprovalCodeCounter holds the last issued approval number for a scope.
type ApprovalCodeCounter struct {
	Scope string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null"`
}
