package visitor

import (
	"time"

	"visitor-approval-backend/internal/model"
)

// Phase is the derived position of an approval in its lifecycle.
type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseInside    Phase = "inside"
	PhaseCompleted Phase = "completed"
	PhaseExpired   Phase = "expired"
	PhaseCancelled Phase = "cancelled"
)

// WindowEnded reports whether the approval's window end is at or before now.
func WindowEnded(a *model.Approval, now time.Time) bool {
	return !now.Before(a.WindowEnd)
}

// WithinWindow reports whether now lies in [start, end].
func WithinWindow(a *model.Approval, now time.Time) bool {
	return !now.Before(a.WindowStart) && !now.After(a.WindowEnd)
}

// IsLive reports whether the approval is still approved and the visitor has
// not exited.
func IsLive(a *model.Approval) bool {
	return a.Status == model.StatusApproved && a.ExitTime == nil
}

// IsUpcoming: approved, not yet entered, window still open.
func IsUpcoming(a *model.Approval, now time.Time) bool {
	return a.Status == model.StatusApproved && a.EntryTime == nil && !WindowEnded(a, now)
}

// IsExpired: the window ended and no exit was recorded, whatever the status.
func IsExpired(a *model.Approval, now time.Time) bool {
	return a.ExitTime == nil && WindowEnded(a, now)
}

// InQueue reports whether security should still expect this visitor.
func InQueue(a *model.Approval, now time.Time) bool {
	return IsLive(a) && !WindowEnded(a, now)
}

// IsNoShow: approved, never entered, window over.
func IsNoShow(a *model.Approval, now time.Time) bool {
	return a.Status == model.StatusApproved && a.EntryTime == nil && WindowEnded(a, now)
}

// Classify folds the stored fields and the clock into a single phase.
func Classify(a *model.Approval, now time.Time) Phase {
	switch {
	case a.Status == model.StatusCancelled:
		return PhaseCancelled
	case a.EntryTime != nil && a.ExitTime != nil:
		return PhaseCompleted
	case a.EntryTime != nil:
		return PhaseInside
	case WindowEnded(a, now):
		return PhaseExpired
	default:
		return PhaseUpcoming
	}
}
