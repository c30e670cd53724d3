package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"visitor-approval-backend/internal/model"
	"visitor-approval-backend/internal/parse"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateApproval(ctx context.Context, a *model.Approval) error
	GetApproval(ctx context.Context, id string) (*model.Approval, error)
	GetApprovalByCode(ctx context.Context, scope, code string) (*model.Approval, error)

	ListByResident(ctx context.Context, scope, residentID string) ([]model.Approval, error)
	ListByMobile(ctx context.Context, scope, mobile string) ([]model.Approval, error)
	ListLive(ctx context.Context, scope string) ([]model.Approval, error)
	ListAll(ctx context.Context, scope string) ([]model.Approval, error)
	ListExpiryCandidates(ctx context.Context, scope string) ([]model.Approval, error)

	ApplyTransition(ctx context.Context, t Transition) error
	RecordExpiry(ctx context.Context, id string, at time.Time, event model.HistoryEvent) (bool, error)

	ListHistoryByResident(ctx context.Context, residentID string) ([]model.HistoryEvent, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateApproval allocates the next code for the approval's scope and inserts
// the record in the same transaction.
func (s *gormStore) CreateApproval(ctx context.Context, a *model.Approval) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := nextCodeNumber(tx, a.Scope)
		if err != nil {
			return err
		}
		a.ApprovalCode = parse.FormatCode(n)

		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("failed to insert approval %s: %w", a.ApprovalCode, err)
		}
		return nil
	})
}

// nextCodeNumber increments the scope's counter row. The UPDATE holds the
// row (Postgres) or database (SQLite) write lock until the surrounding
// transaction ends, so concurrent creators are serialized here.
func nextCodeNumber(tx *gorm.DB, scope string) (int64, error) {
	res := tx.Model(&model.ApprovalCodeCounter{}).
		Where("scope = ?", scope).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment code counter for scope %q: %w", scope, res.Error)
	}

	if res.RowsAffected == 0 {
		if err := seedCounter(tx, scope); err != nil {
			return 0, err
		}
		res = tx.Model(&model.ApprovalCodeCounter{}).
			Where("scope = ?", scope).
			UpdateColumn("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return 0, fmt.Errorf("failed to increment code counter for scope %q: %w", scope, res.Error)
		}
	}

	var counter model.ApprovalCodeCounter
	if err := tx.Where("scope = ?", scope).First(&counter).Error; err != nil {
		return 0, fmt.Errorf("failed to read code counter for scope %q: %w", scope, err)
	}
	return counter.Value, nil
}

// seedCounter creates the counter row, starting from the highest code
// already present in the scope.
func seedCounter(tx *gorm.DB, scope string) error {
	var codes []string
	if err := tx.Model(&model.Approval{}).Where("scope = ?", scope).Pluck("approval_code", &codes).Error; err != nil {
		return fmt.Errorf("failed to scan existing codes for scope %q: %w", scope, err)
	}

	var highest int64
	for _, c := range codes {
		if n, ok := parse.CodeNumber(c); ok && n > highest {
			highest = n
		}
	}
	if highest > 0 {
		log.Printf("Seeding code counter for scope %q at %d", scope, highest)
	}

	counter := model.ApprovalCodeCounter{Scope: scope, Value: highest}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
		return fmt.Errorf("failed to create code counter for scope %q: %w", scope, err)
	}
	return nil
}

func (s *gormStore) GetApproval(ctx context.Context, id string) (*model.Approval, error) {
	var a model.Approval
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *gormStore) GetApprovalByCode(ctx context.Context, scope, code string) (*model.Approval, error) {
	var a model.Approval
	if err := s.db.WithContext(ctx).Where("scope = ? AND approval_code = ?", scope, code).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *gormStore) ListByResident(ctx context.Context, scope, residentID string) ([]model.Approval, error) {
	return s.list(ctx, "scope = ? AND resident_id = ?", scope, residentID)
}

func (s *gormStore) ListByMobile(ctx context.Context, scope, mobile string) ([]model.Approval, error) {
	return s.list(ctx, "scope = ? AND mobile_number = ?", scope, mobile)
}

// ListLive returns approved approvals whose visitor has not exited.
func (s *gormStore) ListLive(ctx context.Context, scope string) ([]model.Approval, error) {
	return s.list(ctx, "scope = ? AND status = ? AND exit_time IS NULL", scope, model.StatusApproved)
}

func (s *gormStore) ListAll(ctx context.Context, scope string) ([]model.Approval, error) {
	return s.list(ctx, "scope = ?", scope)
}

// ListExpiryCandidates returns approved, never-entered approvals whose expiry
// has not been recorded yet. Callers decide which windows have ended.
func (s *gormStore) ListExpiryCandidates(ctx context.Context, scope string) ([]model.Approval, error) {
	return s.list(ctx,
		"scope = ? AND status = ? AND entry_time IS NULL AND expiry_recorded_at IS NULL",
		scope, model.StatusApproved,
	)
}

func (s *gormStore) list(ctx context.Context, query string, args ...any) ([]model.Approval, error) {
	var approvals []model.Approval
	if err := s.db.WithContext(ctx).Where(query, args...).Order("created_at ASC").Find(&approvals).Error; err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	return approvals, nil
}

// ApplyTransition updates one approval guarded by its version and appends the
// matching history event. ErrStaleVersion means another writer got there first.
func (s *gormStore) ApplyTransition(ctx context.Context, t Transition) error {
	updates := make(map[string]any, len(t.Updates)+2)
	for k, v := range t.Updates {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = t.At

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Approval{}).
			Where("id = ? AND version = ?", t.ApprovalID, t.Version).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update approval %s: %w", t.ApprovalID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleVersion
		}

		if t.Event != nil {
			if err := tx.Create(t.Event).Error; err != nil {
				return fmt.Errorf("failed to append %s event for approval %s: %w", t.Event.Type, t.ApprovalID, err)
			}
		}
		return nil
	})
}

// RecordExpiry marks a never-entered approval as reported expired. It does
// not touch the version so it never races with security transitions.
func (s *gormStore) RecordExpiry(ctx context.Context, id string, at time.Time, event model.HistoryEvent) (bool, error) {
	recorded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Approval{}).
			Where("id = ? AND status = ? AND entry_time IS NULL AND expiry_recorded_at IS NULL", id, model.StatusApproved).
			UpdateColumn("expiry_recorded_at", at)
		if res.Error != nil {
			return fmt.Errorf("failed to record expiry for approval %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to append expired event for approval %s: %w", id, err)
		}
		recorded = true
		return nil
	})
	return recorded, err
}

func (s *gormStore) ListHistoryByResident(ctx context.Context, residentID string) ([]model.HistoryEvent, error) {
	var events []model.HistoryEvent
	if err := s.db.WithContext(ctx).
		Where("resident_id = ?", residentID).
		Order("occurred_at DESC").Order("id DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list history for resident %s: %w", residentID, err)
	}
	return events, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
