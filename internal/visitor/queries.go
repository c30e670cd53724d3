package visitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"visitor-approval-backend/internal/model"
	"visitor-approval-backend/internal/parse"
	"visitor-approval-backend/internal/store"
)

// VerifiedApproval is an approval as security sees it at the gate, with the
// window evaluated against the current time.
type VerifiedApproval struct {
	model.Approval
	Phase              Phase  `json:"phase"`
	IsWithinTimeWindow bool   `json:"isWithinTimeWindow"`
	StartDateTime      string `json:"startDateTime"`
	EndDateTime        string `json:"endDateTime"`
}

// GetApprovalByID returns a single approval.
func (s *Service) GetApprovalByID(ctx context.Context, id string) (*model.Approval, error) {
	return s.load(ctx, id)
}

// GetApprovalByCode looks an approval up by its code and evaluates the
// window at the time of the call.
func (s *Service) GetApprovalByCode(ctx context.Context, code string) (*VerifiedApproval, error) {
	normalised := parse.Code(code)
	if normalised == "" {
		return nil, invalid("code", "is required")
	}

	a, err := s.store.GetApprovalByCode(ctx, s.opts.Scope, normalised)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Resource: "approval", Key: normalised}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up approval %s: %w", normalised, err)
	}

	now := s.opts.Now()
	loc := s.zoneOf(a)
	return &VerifiedApproval{
		Approval:           *a,
		Phase:              Classify(a, now),
		IsWithinTimeWindow: WithinWindow(a, now),
		StartDateTime:      a.WindowStart.In(loc).Format(time.RFC3339),
		EndDateTime:        a.WindowEnd.In(loc).Format(time.RFC3339),
	}, nil
}

// GetApprovalsByMobile returns live approvals for a visitor's mobile number.
func (s *Service) GetApprovalsByMobile(ctx context.Context, mobile string) ([]model.Approval, error) {
	if strings.TrimSpace(mobile) == "" {
		return nil, invalid("mobileNumber", "is required")
	}
	normalised, err := parse.Mobile(mobile)
	if err != nil {
		return nil, invalid("mobileNumber", "must be exactly 10 digits")
	}

	all, err := s.store.ListByMobile(ctx, s.opts.Scope, normalised)
	if err != nil {
		return nil, err
	}
	live := filter(all, func(a *model.Approval) bool { return IsLive(a) })
	slices.SortStableFunc(live, byWindowStart)
	return live, nil
}

// GetUpcomingApprovals returns the resident's approvals that have not been
// used and whose window has not ended, soonest first.
func (s *Service) GetUpcomingApprovals(ctx context.Context, residentID string) ([]model.Approval, error) {
	all, err := s.residentApprovals(ctx, residentID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	upcoming := filter(all, func(a *model.Approval) bool { return IsUpcoming(a, now) })
	slices.SortStableFunc(upcoming, byWindowStart)
	return upcoming, nil
}

// GetExpiredApprovals returns the resident's approvals whose window ended
// without a recorded exit, most recent first.
func (s *Service) GetExpiredApprovals(ctx context.Context, residentID string) ([]model.Approval, error) {
	all, err := s.residentApprovals(ctx, residentID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	expired := filter(all, func(a *model.Approval) bool { return IsExpired(a, now) })
	slices.SortStableFunc(expired, func(x, y model.Approval) int {
		return y.WindowEnd.Compare(x.WindowEnd)
	})
	return expired, nil
}

// GetPreApprovedVisitors is the security queue: approvals that are still
// usable, ordered by date and start time.
func (s *Service) GetPreApprovedVisitors(ctx context.Context) ([]model.Approval, error) {
	live, err := s.store.ListLive(ctx, s.opts.Scope)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	queue := filter(live, func(a *model.Approval) bool { return InQueue(a, now) })
	slices.SortStableFunc(queue, func(x, y model.Approval) int {
		return cmp.Or(
			cmp.Compare(x.DateOfVisit, y.DateOfVisit),
			cmp.Compare(x.StartTime, y.StartTime),
			cmp.Compare(x.ApprovalCode, y.ApprovalCode),
		)
	})
	return queue, nil
}

// GetVisitorHistory returns the resident's entry, exit, cancel and expiry
// log, newest first.
func (s *Service) GetVisitorHistory(ctx context.Context, residentID string) ([]model.HistoryEvent, error) {
	residentID = strings.TrimSpace(residentID)
	if residentID == "" {
		return nil, invalid("residentId", "is required")
	}
	return s.store.ListHistoryByResident(ctx, residentID)
}

func (s *Service) residentApprovals(ctx context.Context, residentID string) ([]model.Approval, error) {
	residentID = strings.TrimSpace(residentID)
	if residentID == "" {
		return nil, invalid("residentId", "is required")
	}
	return s.store.ListByResident(ctx, s.opts.Scope, residentID)
}

func filter(in []model.Approval, keep func(*model.Approval) bool) []model.Approval {
	out := make([]model.Approval, 0, len(in))
	for i := range in {
		if keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}

func byWindowStart(x, y model.Approval) int {
	return x.WindowStart.Compare(y.WindowStart)
}
