package visitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"visitor-approval-backend/internal/events"
	"visitor-approval-backend/internal/model"
	"visitor-approval-backend/internal/notification"
	"visitor-approval-backend/internal/store"
)

// MarkEntry records that the visitor passed the gate. It fails with a
// ConflictError when the approval is cancelled or entry was already marked.
func (s *Service) MarkEntry(ctx context.Context, id, officerID, officerName string) (*model.Approval, error) {
	officerID, officerName, err := requireOfficer(officerID, officerName)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	if err := s.checkEntry(a, now); err != nil {
		return nil, err
	}
	if !WithinWindow(a, now) {
		log.Printf("Entry for %s at %s is outside its window %s-%s on %s (policy %s)",
			a.ApprovalCode, s.clock(a, now), a.StartTime, a.EndTime, a.DateOfVisit, s.opts.EntryPolicy)
	}

	t := store.Transition{
		ApprovalID: a.ID,
		Version:    a.Version,
		At:         now,
		Updates: map[string]any{
			"entry_time":            now,
			"security_officer_id":   officerID,
			"security_officer_name": officerName,
		},
		Event: historyEvent(a, model.EventEntry, officerID, officerName, now),
	}
	if err := s.apply(ctx, t, s.checkEntry); err != nil {
		return nil, err
	}

	a.EntryTime = &now
	a.SecurityOfficerID = officerID
	a.SecurityOfficerName = officerName
	bump(a, now)
	log.Printf("Entry marked for %s by %s", a.ApprovalCode, officerName)

	s.notifier.Dispatch(notification.Job{
		ResidentID:   a.ResidentID,
		Title:        "Visitor arrived",
		Body:         fmt.Sprintf("%s entered at %s", a.VisitorName, s.clock(a, now)),
		ApprovalCode: a.ApprovalCode,
	})
	s.publish(ctx, events.ApprovalEntered, a, officerID, officerName, now)
	return a, nil
}

func (s *Service) checkEntry(a *model.Approval, now time.Time) error {
	switch {
	case a.Status == model.StatusCancelled:
		return s.cancelledConflict(a)
	case a.EntryTime != nil:
		return &ConflictError{
			ApprovalID: a.ID,
			State:      string(Classify(a, now)),
			Message: fmt.Sprintf("entry already marked at %s by %s",
				s.clock(a, *a.EntryTime), a.SecurityOfficerName),
		}
	case s.opts.EntryPolicy == EntryStrict && !WithinWindow(a, now):
		return &ConflictError{
			ApprovalID: a.ID,
			State:      "outside_window",
			Message: fmt.Sprintf("approval %s is valid %s-%s on %s only",
				a.ApprovalCode, a.StartTime, a.EndTime, a.DateOfVisit),
		}
	}
	return nil
}

// MarkExit records that the visitor left. Entry must have been marked first.
func (s *Service) MarkExit(ctx context.Context, id, officerID, officerName string) (*model.Approval, error) {
	officerID, officerName, err := requireOfficer(officerID, officerName)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().UTC()
	if err := s.checkExit(a, now); err != nil {
		return nil, err
	}
	exitAt := now
	if exitAt.Before(*a.EntryTime) {
		exitAt = *a.EntryTime
	}

	t := store.Transition{
		ApprovalID: a.ID,
		Version:    a.Version,
		At:         now,
		Updates:    map[string]any{"exit_time": exitAt},
		Event:      historyEvent(a, model.EventExit, officerID, officerName, exitAt),
	}
	if err := s.apply(ctx, t, s.checkExit); err != nil {
		return nil, err
	}

	a.ExitTime = &exitAt
	bump(a, now)
	log.Printf("Exit marked for %s by %s", a.ApprovalCode, officerName)

	s.notifier.Dispatch(notification.Job{
		ResidentID:   a.ResidentID,
		Title:        "Visitor left",
		Body:         fmt.Sprintf("%s exited at %s", a.VisitorName, s.clock(a, exitAt)),
		ApprovalCode: a.ApprovalCode,
	})
	s.publish(ctx, events.ApprovalExited, a, officerID, officerName, exitAt)
	return a, nil
}

func (s *Service) checkExit(a *model.Approval, now time.Time) error {
	switch {
	case a.Status == model.StatusCancelled:
		return s.cancelledConflict(a)
	case a.EntryTime == nil:
		return &ConflictError{
			ApprovalID: a.ID,
			State:      "not_entered",
			Message:    fmt.Sprintf("no entry recorded for approval %s", a.ApprovalCode),
		}
	case a.ExitTime != nil:
		return &ConflictError{
			ApprovalID: a.ID,
			State:      string(PhaseCompleted),
			Message:    fmt.Sprintf("already exited at %s", s.clock(a, *a.ExitTime)),
		}
	}
	return nil
}

// CancelApproval withdraws an approval before the visit is completed. A
// non-empty residentID must match the issuing resident.
func (s *Service) CancelApproval(ctx context.Context, id, residentID string) (*model.Approval, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	residentID = strings.TrimSpace(residentID)
	if residentID != "" && residentID != a.ResidentID {
		return nil, &ForbiddenError{Message: fmt.Sprintf("approval %s belongs to another resident", a.ApprovalCode)}
	}

	now := s.opts.Now().UTC()
	if err := s.checkCancel(a, now); err != nil {
		return nil, err
	}

	t := store.Transition{
		ApprovalID: a.ID,
		Version:    a.Version,
		At:         now,
		Updates: map[string]any{
			"status":       model.StatusCancelled,
			"cancelled_at": now,
		},
		Event: historyEvent(a, model.EventCancelled, "", "", now),
	}
	if err := s.apply(ctx, t, s.checkCancel); err != nil {
		return nil, err
	}

	a.Status = model.StatusCancelled
	a.CancelledAt = &now
	bump(a, now)
	log.Printf("Approval %s cancelled by resident %s", a.ApprovalCode, a.ResidentID)

	s.publish(ctx, events.ApprovalCancelled, a, "", "", now)
	return a, nil
}

func (s *Service) checkCancel(a *model.Approval, now time.Time) error {
	switch {
	case a.Status == model.StatusCancelled:
		return s.cancelledConflict(a)
	case a.ExitTime != nil:
		return &ConflictError{
			ApprovalID: a.ID,
			State:      string(PhaseCompleted),
			Message:    fmt.Sprintf("visit already completed, visitor exited at %s", s.clock(a, *a.ExitTime)),
		}
	}
	return nil
}

func (s *Service) cancelledConflict(a *model.Approval) error {
	msg := fmt.Sprintf("approval %s is cancelled", a.ApprovalCode)
	if a.CancelledAt != nil {
		msg = fmt.Sprintf("approval %s was cancelled at %s", a.ApprovalCode, s.clock(a, *a.CancelledAt))
	}
	return &ConflictError{ApprovalID: a.ID, State: string(PhaseCancelled), Message: msg}
}

// apply writes a transition. When another writer won the version race the
// approval is reloaded and check describes the state that beat us.
func (s *Service) apply(ctx context.Context, t store.Transition, check func(*model.Approval, time.Time) error) error {
	err := s.store.ApplyTransition(ctx, t)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrStaleVersion) {
		return fmt.Errorf("failed to update approval %s: %w", t.ApprovalID, err)
	}

	current, loadErr := s.load(ctx, t.ApprovalID)
	if loadErr != nil {
		return loadErr
	}
	if conflict := check(current, t.At); conflict != nil {
		return conflict
	}
	return &ConflictError{
		ApprovalID: t.ApprovalID,
		State:      string(Classify(current, t.At)),
		Message:    fmt.Sprintf("approval %s was modified concurrently, reload and retry", current.ApprovalCode),
	}
}

// SweepExpired records expiry for every approval whose window ended without
// an entry. Status is left untouched. It returns how many were recorded.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	candidates, err := s.store.ListExpiryCandidates(ctx, s.opts.Scope)
	if err != nil {
		return 0, fmt.Errorf("failed to list expiry candidates: %w", err)
	}

	now := s.opts.Now().UTC()
	var (
		recorded int
		errs     []error
	)
	for i := range candidates {
		a := &candidates[i]
		if !IsNoShow(a, now) {
			continue
		}

		ok, err := s.store.RecordExpiry(ctx, a.ID, now, *historyEvent(a, model.EventExpired, "", "", now))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		recorded++

		s.notifier.Dispatch(notification.Job{
			ResidentID:   a.ResidentID,
			Title:        "Approval expired",
			Body:         fmt.Sprintf("%s did not arrive between %s and %s on %s", a.VisitorName, a.StartTime, a.EndTime, a.DateOfVisit),
			ApprovalCode: a.ApprovalCode,
		})
		s.publish(ctx, events.ApprovalExpired, a, "", "", now)
	}
	return recorded, errors.Join(errs...)
}

func requireOfficer(id, name string) (string, string, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return "", "", invalid("officerId", "is required")
	}
	if name == "" {
		return "", "", invalid("officerName", "is required")
	}
	return id, name, nil
}

func historyEvent(a *model.Approval, typ model.HistoryEventType, officerID, officerName string, at time.Time) *model.HistoryEvent {
	return &model.HistoryEvent{
		ApprovalID:   a.ID,
		ResidentID:   a.ResidentID,
		ApprovalCode: a.ApprovalCode,
		VisitorName:  a.VisitorName,
		Type:         typ,
		OfficerID:    officerID,
		OfficerName:  officerName,
		OccurredAt:   at,
	}
}

func bump(a *model.Approval, at time.Time) {
	a.Version++
	a.UpdatedAt = at
}
