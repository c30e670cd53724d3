package visitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitor-approval-backend/internal/model"
)

func codes(approvals []model.Approval) []string {
	out := make([]string, len(approvals))
	for i, a := range approvals {
		out[i] = a.ApprovalCode
	}
	return out
}

func TestUpcomingAndExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	morning, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "10:00", "11:00"), anita)
	require.NoError(t, err)
	tomorrow, err := h.svc.CreateApproval(ctx, visit("2025-03-11", "09:00", "10:00"), anita)
	require.NoError(t, err)
	evening, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "18:00", "19:00"), anita)
	require.NoError(t, err)
	other := anita
	other.ResidentID = "res-2"
	_, err = h.svc.CreateApproval(ctx, visit("2025-03-10", "10:00", "11:00"), other)
	require.NoError(t, err)

	upcoming, err := h.svc.GetUpcomingApprovals(ctx, anita.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, []string{morning.ApprovalCode, evening.ApprovalCode, tomorrow.ApprovalCode}, codes(upcoming))

	// The morning window is over and nobody showed up.
	h.at(0, 12, 0)
	upcoming, err = h.svc.GetUpcomingApprovals(ctx, anita.ResidentID)
	require.NoError(t, err)
	assert.NotContains(t, codes(upcoming), morning.ApprovalCode)

	expired, err := h.svc.GetExpiredApprovals(ctx, anita.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, []string{morning.ApprovalCode}, codes(expired))

	// Cancelled approvals still count as expired once the window passes.
	_, err = h.svc.CancelApproval(ctx, evening.ID, anita.ResidentID)
	require.NoError(t, err)
	h.at(1, 8, 0)
	expired, err = h.svc.GetExpiredApprovals(ctx, anita.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, []string{evening.ApprovalCode, morning.ApprovalCode}, codes(expired))

	_, err = h.svc.GetUpcomingApprovals(ctx, " ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetApprovalByCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "10:00", "12:00"), anita)
	require.NoError(t, err)

	first, err := h.svc.GetApprovalByCode(ctx, a.ApprovalCode)
	require.NoError(t, err)
	second, err := h.svc.GetApprovalByCode(ctx, a.ApprovalCode)
	require.NoError(t, err)
	assert.Equal(t, first, second, "reads without a mutation in between are identical")
	assert.False(t, first.IsWithinTimeWindow)
	assert.Equal(t, PhaseUpcoming, first.Phase)
	assert.Equal(t, "2025-03-10T10:00:00+05:30", first.StartDateTime)
	assert.Equal(t, "2025-03-10T12:00:00+05:30", first.EndDateTime)

	h.at(0, 12, 0)
	inside, err := h.svc.GetApprovalByCode(ctx, "vpa-000001")
	require.NoError(t, err)
	assert.True(t, inside.IsWithinTimeWindow, "the window end is inclusive")
	assert.Equal(t, first.Approval.ID, inside.Approval.ID)

	h.at(0, 12, 1)
	after, err := h.svc.GetApprovalByCode(ctx, a.ApprovalCode)
	require.NoError(t, err)
	assert.False(t, after.IsWithinTimeWindow)
	assert.Equal(t, PhaseExpired, after.Phase)

	_, err = h.svc.GetApprovalByCode(ctx, "VPA999999")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "VPA999999", nf.Key)

	_, err = h.svc.GetApprovalByCode(ctx, "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetApprovalsByMobile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	live, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "10:00", "12:00"), anita)
	require.NoError(t, err)
	done, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "09:00", "12:00"), anita)
	require.NoError(t, err)
	cancelled, err := h.svc.CreateApproval(ctx, visit("2025-03-11", "10:00", "12:00"), anita)
	require.NoError(t, err)

	h.at(0, 9, 30)
	_, err = h.svc.MarkEntry(ctx, done.ID, "sec-1", "Vikram")
	require.NoError(t, err)
	_, err = h.svc.MarkExit(ctx, done.ID, "sec-1", "Vikram")
	require.NoError(t, err)
	_, err = h.svc.CancelApproval(ctx, cancelled.ID, anita.ResidentID)
	require.NoError(t, err)

	found, err := h.svc.GetApprovalsByMobile(ctx, "+91 98765 43210")
	require.NoError(t, err)
	assert.Equal(t, []string{live.ApprovalCode}, codes(found))

	found, err = h.svc.GetApprovalsByMobile(ctx, "9123456789")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = h.svc.GetApprovalsByMobile(ctx, "12345")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mobileNumber", verr.Field)
}

func TestGetPreApprovedVisitors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	late, err := h.svc.CreateApproval(ctx, visit("2025-03-11", "08:00", "09:00"), anita)
	require.NoError(t, err)
	afternoon, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "14:00", "15:00"), anita)
	require.NoError(t, err)
	morning, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "09:30", "10:00"), anita)
	require.NoError(t, err)
	ended, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "09:00", "09:30"), anita)
	require.NoError(t, err)
	inside, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "09:00", "11:00"), anita)
	require.NoError(t, err)

	h.at(0, 9, 15)
	_, err = h.svc.MarkEntry(ctx, inside.ID, "sec-1", "Vikram")
	require.NoError(t, err)

	h.at(0, 9, 45)
	queue, err := h.svc.GetPreApprovedVisitors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{inside.ApprovalCode, morning.ApprovalCode, afternoon.ApprovalCode, late.ApprovalCode}, codes(queue))
	assert.NotContains(t, codes(queue), ended.ApprovalCode)
}

func TestGetAnalyticsData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Created 2025-03-10 09:00 IST.
	a, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "10:00", "12:00"), anita)
	require.NoError(t, err)
	b, err := h.svc.CreateApproval(ctx, visit("2025-03-10", "10:00", "12:00"), anita)
	require.NoError(t, err)

	h.at(-1, 23, 45)
	guest := visit("2025-03-09", "23:50", "23:59")
	guest.MobileNumber = "9000000001"
	guest.Purpose = "guest"
	c, err := h.svc.CreateApproval(ctx, guest, anita)
	require.NoError(t, err)

	h.at(0, 10, 0)
	_, err = h.svc.MarkEntry(ctx, a.ID, "sec-1", "Vikram")
	require.NoError(t, err)
	h.at(0, 10, 30)
	_, err = h.svc.MarkEntry(ctx, b.ID, "sec-1", "Vikram")
	require.NoError(t, err)
	_, err = h.svc.MarkExit(ctx, b.ID, "sec-1", "Vikram")
	require.NoError(t, err)
	_, err = h.svc.CancelApproval(ctx, c.ID, "")
	require.NoError(t, err)

	sum, err := h.svc.GetAnalyticsData(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalApprovals)
	assert.Equal(t, map[model.ApprovalStatus]int{model.StatusApproved: 2, model.StatusCancelled: 1}, sum.ByStatus)
	assert.Equal(t, 1, sum.CompletedVisits)
	assert.Equal(t, map[string]int{"9876543210": 2, "9000000001": 1}, sum.VisitsByMobile)
	assert.Equal(t, 2, sum.VisitsByPurpose[model.PurposeDelivery])
	assert.Equal(t, 1, sum.VisitsByPurpose[model.PurposeGuest])
	assert.Equal(t, 0, sum.VisitsByPurpose[model.PurposeRepair])
	assert.Len(t, sum.DailyTrend, 30)
	assert.Equal(t, 2, sum.DailyTrend["2025-03-10"])
	assert.Equal(t, 1, sum.DailyTrend["2025-03-09"])
	assert.Equal(t, 0, sum.DailyTrend["2025-02-09"])
	assert.NotContains(t, sum.DailyTrend, "2025-02-08")
	// 60 and 90 minutes from creation to entry.
	assert.Equal(t, 75.0, sum.AverageEntryDelayMinutes)
}

func TestGetAnalyticsData_Empty(t *testing.T) {
	h := newHarness(t)

	sum, err := h.svc.GetAnalyticsData(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.TotalApprovals)
	assert.Zero(t, sum.AverageEntryDelayMinutes)
	assert.Equal(t, 0, sum.ByStatus[model.StatusCancelled])
	assert.Len(t, sum.DailyTrend, 30)
}

func TestGetSuspiciousActivities_RepeatThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	repeat := visit("2025-03-11", "10:00", "11:00")
	repeat.MobileNumber = "9999999999"
	for i := 0; i < 2; i++ {
		_, err := h.svc.CreateApproval(ctx, repeat, anita)
		require.NoError(t, err)
	}

	flagged, err := h.svc.GetSuspiciousActivities(ctx)
	require.NoError(t, err)
	assert.Empty(t, flagged, "two visits on one day are fine")

	_, err = h.svc.CreateApproval(ctx, repeat, anita)
	require.NoError(t, err)
	// Same mobile on another day does not count towards the first day.
	other := repeat
	other.DateOfVisit = "2025-03-12"
	_, err = h.svc.CreateApproval(ctx, other, anita)
	require.NoError(t, err)

	flagged, err = h.svc.GetSuspiciousActivities(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 3)
	for _, f := range flagged {
		assert.Equal(t, "2025-03-11", f.DateOfVisit)
		assert.Equal(t, []Reason{ReasonRepeatSameDay}, f.Reasons)
	}
}

func TestFlagSuspicious_Overstay(t *testing.T) {
	end := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	entry := end.Add(-time.Hour)
	atGrace := end.Add(2 * time.Hour)
	pastGrace := atGrace.Add(time.Minute)
	lateEntry := end.Add(10 * time.Minute)

	approvals := []model.Approval{
		{ApprovalCode: "VPA000001", MobileNumber: "1", DateOfVisit: "2025-03-10", WindowEnd: end, EntryTime: &entry, ExitTime: &atGrace},
		{ApprovalCode: "VPA000002", MobileNumber: "2", DateOfVisit: "2025-03-10", WindowEnd: end, EntryTime: &entry, ExitTime: &pastGrace},
		{ApprovalCode: "VPA000003", MobileNumber: "3", DateOfVisit: "2025-03-10", WindowEnd: end, EntryTime: &lateEntry, ExitTime: &pastGrace},
	}

	flagged := flagSuspicious(approvals, 2, 2*time.Hour)
	require.Len(t, flagged, 2)
	assert.Equal(t, "VPA000002", flagged[0].ApprovalCode)
	assert.Equal(t, []Reason{ReasonOverstay}, flagged[0].Reasons)
	assert.Equal(t, "VPA000003", flagged[1].ApprovalCode)
	assert.Equal(t, []Reason{ReasonLateEntry, ReasonOverstay}, flagged[1].Reasons)
}
