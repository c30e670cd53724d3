package visitor

import (
	"context"
	"math"
	"time"

	"visitor-approval-backend/internal/model"
	"visitor-approval-backend/internal/parse"
)

// AnalyticsSummary aggregates every approval in the scope.
type AnalyticsSummary struct {
	TotalApprovals           int                          `json:"totalApprovals"`
	ByStatus                 map[model.ApprovalStatus]int `json:"byStatus"`
	CompletedVisits          int                          `json:"completedVisits"`
	VisitsByMobile           map[string]int               `json:"visitsByMobile"`
	VisitsByPurpose          map[model.Purpose]int        `json:"visitsByPurpose"`
	DailyTrend               map[string]int               `json:"dailyTrend"`
	AverageEntryDelayMinutes float64                      `json:"averageEntryDelayMinutes"`
	GeneratedAt              time.Time                    `json:"generatedAt"`
}

// GetAnalyticsData computes the admin dashboard figures.
func (s *Service) GetAnalyticsData(ctx context.Context) (*AnalyticsSummary, error) {
	all, err := s.store.ListAll(ctx, s.opts.Scope)
	if err != nil {
		return nil, err
	}
	return summarize(all, s.opts.Now(), s.opts.Location, s.opts.TrendDays), nil
}

func summarize(approvals []model.Approval, now time.Time, loc *time.Location, trendDays int) *AnalyticsSummary {
	sum := &AnalyticsSummary{
		TotalApprovals: len(approvals),
		ByStatus: map[model.ApprovalStatus]int{
			model.StatusApproved:  0,
			model.StatusCancelled: 0,
		},
		VisitsByMobile:  make(map[string]int),
		VisitsByPurpose: make(map[model.Purpose]int, len(model.Purposes)),
		DailyTrend:      make(map[string]int, trendDays),
		GeneratedAt:     now.UTC(),
	}
	for _, p := range model.Purposes {
		sum.VisitsByPurpose[p] = 0
	}

	today := startOfDay(now, loc)
	for i := 0; i < trendDays; i++ {
		sum.DailyTrend[today.AddDate(0, 0, -i).Format(parse.DateLayout)] = 0
	}

	var (
		delayTotal float64
		entered    int
	)
	for i := range approvals {
		a := &approvals[i]
		sum.ByStatus[a.Status]++
		sum.VisitsByMobile[a.MobileNumber]++
		sum.VisitsByPurpose[a.Purpose]++

		if a.EntryTime != nil && a.ExitTime != nil {
			sum.CompletedVisits++
		}
		if a.EntryTime != nil {
			delayTotal += a.EntryTime.Sub(a.CreatedAt).Minutes()
			entered++
		}

		day := a.CreatedAt.In(loc).Format(parse.DateLayout)
		if _, tracked := sum.DailyTrend[day]; tracked {
			sum.DailyTrend[day]++
		}
	}

	if entered > 0 {
		sum.AverageEntryDelayMinutes = math.Round(delayTotal/float64(entered)*100) / 100
	}
	return sum
}
