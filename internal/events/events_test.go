package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, subject, want string
	}{
		{"visitor", ApprovalCreated, "visitor.approval.created"},
		{"tower-a.visitor", ApprovalExpired, "tower-a.visitor.approval.expired"},
		{"", ApprovalEntered, "approval.entered"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subject(tt.prefix, tt.subject))
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), ApprovalCreated, ApprovalEvent{}))
	assert.NoError(t, p.Close())
}

func TestApprovalEvent_JSON(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	ev := ApprovalEvent{
		MessageID:    NewMessageID(),
		ApprovalID:   "a-1",
		ApprovalCode: "VPA000042",
		ResidentID:   "res-1",
		OccurredAt:   at,
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "VPA000042", fields["approval_code"])
	assert.Equal(t, "2025-03-01T10:30:00Z", fields["occurred_at"])
	assert.NotContains(t, fields, "officer_id")
	assert.Len(t, ev.MessageID, 36)
}

func TestNewNATSEventBus_Unreachable(t *testing.T) {
	_, err := NewNATSEventBus("nats://127.0.0.1:1", "visitor")
	assert.Error(t, err)
}
