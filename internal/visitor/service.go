package visitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"visitor-approval-backend/config"
	"visitor-approval-backend/internal/events"
	"visitor-approval-backend/internal/model"
	"visitor-approval-backend/internal/notification"
	"visitor-approval-backend/internal/parse"
	"visitor-approval-backend/internal/store"
)

// EntryPolicy decides what happens when security marks entry outside the
// approved window.
type EntryPolicy string

const (
	// EntryAdvisory allows the entry and leaves it to the audit heuristics.
	EntryAdvisory EntryPolicy = "advisory"
	// EntryStrict rejects the entry with a ConflictError.
	EntryStrict EntryPolicy = "strict"
)

// Options holds the approval policy of one scope.
type Options struct {
	Scope                string
	Location             *time.Location
	MaxWindow            time.Duration
	EntryPolicy          EntryPolicy
	RepeatVisitThreshold int
	OverstayGrace        time.Duration
	TrendDays            int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig resolves the configured timezone and policy names.
func OptionsFromConfig(cfg config.VisitorConfig) (Options, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Options{}, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	policy := EntryPolicy(strings.ToLower(cfg.EntryPolicy))
	if policy != EntryAdvisory && policy != EntryStrict {
		return Options{}, fmt.Errorf("unknown entry policy %q", cfg.EntryPolicy)
	}

	return Options{
		Scope:                cfg.Scope,
		Location:             loc,
		MaxWindow:            time.Duration(cfg.MaxWindowHours) * time.Hour,
		EntryPolicy:          policy,
		RepeatVisitThreshold: cfg.RepeatVisitThreshold,
		OverstayGrace:        time.Duration(cfg.OverstayGraceMinutes) * time.Minute,
		TrendDays:            cfg.TrendDays,
	}, nil
}

// Notifier delivers push messages to residents. *notification.WorkerPool
// satisfies it.
type Notifier interface {
	Dispatch(job notification.Job)
}

type nopNotifier struct{}

func (nopNotifier) Dispatch(notification.Job) {}

// Service owns the approval lifecycle: creation, window evaluation, security
// transitions, queries and audit signals.
type Service struct {
	store     store.Store
	opts      Options
	notifier  Notifier
	publisher events.Publisher
}

// NewService wires a Service. A nil notifier or publisher disables that side
// effect.
func NewService(s store.Store, opts Options, notifier Notifier, publisher events.Publisher) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = 8 * time.Hour
	}
	if opts.EntryPolicy == "" {
		opts.EntryPolicy = EntryAdvisory
	}
	if opts.RepeatVisitThreshold <= 0 {
		opts.RepeatVisitThreshold = 2
	}
	if opts.OverstayGrace <= 0 {
		opts.OverstayGrace = 2 * time.Hour
	}
	if opts.TrendDays <= 0 {
		opts.TrendDays = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{store: s, opts: opts, notifier: notifier, publisher: publisher}
}

// Options returns the effective policy.
func (s *Service) Options() Options {
	return s.opts
}

// VisitorInput is what a resident submits about the visitor.
type VisitorInput struct {
	VisitorName   string `json:"visitorName"`
	MobileNumber  string `json:"mobileNumber"`
	Purpose       string `json:"purpose"`
	VehicleNumber string `json:"vehicleNumber"`
	DateOfVisit   string `json:"dateOfVisit"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
}

// ResidentInfo identifies the issuing resident.
type ResidentInfo struct {
	ResidentID   string `json:"residentId"`
	ResidentName string `json:"residentName"`
	FlatNumber   string `json:"flatNumber"`
}

// CreateApproval validates the request, allocates the next approval code and
// stores a new approved record.
func (s *Service) CreateApproval(ctx context.Context, in VisitorInput, res ResidentInfo) (*model.Approval, error) {
	now := s.opts.Now()
	a, err := s.newApproval(in, res, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateApproval(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create approval: %w", err)
	}
	log.Printf("Approval %s created by resident %s (flat %s) for %s on %s %s-%s",
		a.ApprovalCode, a.ResidentID, a.FlatNumber, a.VisitorName, a.DateOfVisit, a.StartTime, a.EndTime)

	s.publish(ctx, events.ApprovalCreated, a, "", "", now)
	return a, nil
}

func (s *Service) newApproval(in VisitorInput, res ResidentInfo, now time.Time) (*model.Approval, error) {
	loc := s.opts.Location

	name := strings.TrimSpace(in.VisitorName)
	if name == "" {
		return nil, invalid("visitorName", "is required")
	}
	if strings.TrimSpace(in.MobileNumber) == "" {
		return nil, invalid("mobileNumber", "is required")
	}
	mobile, err := parse.Mobile(in.MobileNumber)
	if err != nil {
		return nil, invalid("mobileNumber", "must be exactly 10 digits")
	}

	purpose := model.Purpose(strings.ToLower(strings.TrimSpace(in.Purpose)))
	if !slices.Contains(model.Purposes, purpose) {
		return nil, invalid("purpose", "must be one of %s", joinPurposes())
	}

	var vehicle string
	if strings.TrimSpace(in.VehicleNumber) != "" {
		if vehicle, err = parse.VehicleNumber(in.VehicleNumber); err != nil {
			return nil, invalid("vehicleNumber", "%q is not a valid registration number", in.VehicleNumber)
		}
	}

	date, err := parse.Date(in.DateOfVisit, loc)
	if err != nil {
		return nil, invalid("dateOfVisit", "must be formatted as YYYY-MM-DD")
	}
	if date.Before(startOfDay(now, loc)) {
		return nil, invalid("dateOfVisit", "must not be in the past")
	}

	start, err := parse.ClockTime(in.StartTime)
	if err != nil {
		return nil, invalid("startTime", "must be formatted as HH:MM")
	}
	end, err := parse.ClockTime(in.EndTime)
	if err != nil {
		return nil, invalid("endTime", "must be formatted as HH:MM")
	}
	if end.Minutes() <= start.Minutes() {
		return nil, invalid("endTime", "must be after startTime")
	}
	// Measured between instants so a DST change inside the window counts.
	windowStart, windowEnd := parse.At(date, start, loc), parse.At(date, end, loc)
	length := windowEnd.Sub(windowStart)
	if length <= 0 {
		return nil, invalid("endTime", "must be after startTime")
	}
	if length > s.opts.MaxWindow {
		return nil, invalid("endTime", "window of %s exceeds the maximum of %s", length, s.opts.MaxWindow)
	}

	resident := ResidentInfo{
		ResidentID:   strings.TrimSpace(res.ResidentID),
		ResidentName: strings.TrimSpace(res.ResidentName),
		FlatNumber:   strings.TrimSpace(res.FlatNumber),
	}
	switch {
	case resident.ResidentID == "":
		return nil, invalid("residentId", "is required")
	case resident.ResidentName == "":
		return nil, invalid("residentName", "is required")
	case resident.FlatNumber == "":
		return nil, invalid("flatNumber", "is required")
	}

	created := now.UTC()
	return &model.Approval{
		ID:            uuid.NewString(),
		Scope:         s.opts.Scope,
		VisitorName:   name,
		MobileNumber:  mobile,
		Purpose:       purpose,
		VehicleNumber: vehicle,
		DateOfVisit:   date.Format(parse.DateLayout),
		StartTime:     start.String(),
		EndTime:       end.String(),
		Timezone:      loc.String(),
		WindowStart:   windowStart.UTC(),
		WindowEnd:     windowEnd.UTC(),
		ResidentID:    resident.ResidentID,
		ResidentName:  resident.ResidentName,
		FlatNumber:    resident.FlatNumber,
		Status:        model.StatusApproved,
		Version:       1,
		CreatedAt:     created,
		UpdatedAt:     created,
	}, nil
}

// load fetches an approval by id and translates a miss into NotFoundError.
func (s *Service) load(ctx context.Context, id string) (*model.Approval, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "is required")
	}
	a, err := s.store.GetApproval(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Resource: "approval", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approval %s: %w", id, err)
	}
	return a, nil
}

// zoneOf returns the timezone the approval was issued in.
func (s *Service) zoneOf(a *model.Approval) *time.Location {
	if a.Timezone == "" || a.Timezone == s.opts.Location.String() {
		return s.opts.Location
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		log.Printf("Approval %s has unknown timezone %q, using %s", a.ApprovalCode, a.Timezone, s.opts.Location)
		return s.opts.Location
	}
	return loc
}

// clock renders t as HH:MM in the approval's zone, for messages.
func (s *Service) clock(a *model.Approval, t time.Time) string {
	return t.In(s.zoneOf(a)).Format(parse.ClockLayout)
}

func (s *Service) publish(ctx context.Context, subject string, a *model.Approval, officerID, officerName string, at time.Time) {
	ev := events.ApprovalEvent{
		MessageID:    events.NewMessageID(),
		ApprovalID:   a.ID,
		ApprovalCode: a.ApprovalCode,
		Scope:        a.Scope,
		ResidentID:   a.ResidentID,
		FlatNumber:   a.FlatNumber,
		VisitorName:  a.VisitorName,
		MobileNumber: a.MobileNumber,
		OfficerID:    officerID,
		OfficerName:  officerName,
		OccurredAt:   at.UTC(),
	}
	if err := s.publisher.Publish(ctx, subject, ev); err != nil {
		log.Printf("Failed to publish %s for approval %s: %v", subject, a.ApprovalCode, err)
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func joinPurposes() string {
	names := make([]string, len(model.Purposes))
	for i, p := range model.Purposes {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
