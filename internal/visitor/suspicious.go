package visitor

import (
	"context"
	"time"

	"visitor-approval-backend/internal/model"
)

// Reason names an audit heuristic.
type Reason string

const (
	ReasonRepeatSameDay Reason = "repeat_same_day"
	ReasonLateEntry     Reason = "late_entry"
	ReasonOverstay      Reason = "overstay"
)

// SuspiciousActivity is an approval together with every heuristic it tripped.
type SuspiciousActivity struct {
	model.Approval
	Reasons []Reason `json:"reasons"`
}

// GetSuspiciousActivities flags approvals with too many same-day visits from
// one mobile, entry after the window, or exit long after the window.
func (s *Service) GetSuspiciousActivities(ctx context.Context) ([]SuspiciousActivity, error) {
	all, err := s.store.ListAll(ctx, s.opts.Scope)
	if err != nil {
		return nil, err
	}
	return flagSuspicious(all, s.opts.RepeatVisitThreshold, s.opts.OverstayGrace), nil
}

func flagSuspicious(approvals []model.Approval, repeatThreshold int, overstayGrace time.Duration) []SuspiciousActivity {
	type visitDay struct{ mobile, date string }
	perDay := make(map[visitDay]int)
	for i := range approvals {
		perDay[visitDay{approvals[i].MobileNumber, approvals[i].DateOfVisit}]++
	}

	flagged := make([]SuspiciousActivity, 0)
	for i := range approvals {
		a := &approvals[i]
		var reasons []Reason
		if perDay[visitDay{a.MobileNumber, a.DateOfVisit}] > repeatThreshold {
			reasons = append(reasons, ReasonRepeatSameDay)
		}
		if a.EntryTime != nil && a.EntryTime.After(a.WindowEnd) {
			reasons = append(reasons, ReasonLateEntry)
		}
		if a.ExitTime != nil && a.ExitTime.Sub(a.WindowEnd) > overstayGrace {
			reasons = append(reasons, ReasonOverstay)
		}
		if len(reasons) > 0 {
			flagged = append(flagged, SuspiciousActivity{Approval: *a, Reasons: reasons})
		}
	}
	return flagged
}
