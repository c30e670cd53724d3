package visitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"visitor-approval-backend/internal/db"
	"visitor-approval-backend/internal/notification"
	"visitor-approval-backend/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notification.Job
}

func (n *recordingNotifier) Dispatch(job notification.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
}

func (n *recordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, len(n.jobs))
	for i, j := range n.jobs {
		titles[i] = j.Title
	}
	return titles
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type harness struct {
	svc       *Service
	store     store.Store
	db        *gorm.DB
	clock     *fakeClock
	notifier  *recordingNotifier
	publisher *recordingPublisher
	loc       *time.Location
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

// newHarness builds a service over an in-memory SQLite store. The clock
// starts at 2025-03-10 09:00 Asia/Kolkata.
func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	loc := kolkata(t)
	h := &harness{
		db:        gormDB,
		store:     store.NewGormStore(gormDB),
		clock:     &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, loc)},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		loc:       loc,
	}
	opts := Options{
		Scope:       "tower-a",
		Location:    loc,
		EntryPolicy: EntryAdvisory,
		Now:         h.clock.Now,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	h.svc = NewService(h.store, opts, h.notifier, h.publisher)
	return h
}

// at moves the clock to hh:mm on the given day offset from 2025-03-10.
func (h *harness) at(dayOffset, hh, mm int) time.Time {
	t := time.Date(2025, 3, 10+dayOffset, hh, mm, 0, 0, h.loc)
	h.clock.Set(t)
	return t
}

func visit(date, start, end string) VisitorInput {
	return VisitorInput{
		VisitorName:  "Ramesh",
		MobileNumber: "9876543210",
		Purpose:      "delivery",
		DateOfVisit:  date,
		StartTime:    start,
		EndTime:      end,
	}
}

var anita = ResidentInfo{ResidentID: "res-1", ResidentName: "Anita", FlatNumber: "B-402"}
