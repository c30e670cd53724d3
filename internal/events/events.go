package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher sends lifecycle events to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

// Approval lifecycle subjects, relative to the configured prefix.
const (
	ApprovalCreated   = "approval.created"
	ApprovalEntered   = "approval.entered"
	ApprovalExited    = "approval.exited"
	ApprovalCancelled = "approval.cancelled"
	ApprovalExpired   = "approval.expired"
)

// ApprovalEvent is the payload published for every lifecycle transition.
type ApprovalEvent struct {
	MessageID    string    `json:"message_id"`
	ApprovalID   string    `json:"approval_id"`
	ApprovalCode string    `json:"approval_code"`
	Scope        string    `json:"scope"`
	ResidentID   string    `json:"resident_id"`
	FlatNumber   string    `json:"flat_number"`
	VisitorName  string    `json:"visitor_name"`
	MobileNumber string    `json:"mobile_number"`
	OfficerID    string    `json:"officer_id,omitempty"`
	OfficerName  string    `json:"officer_name,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewMessageID returns a unique id consumers can use to drop duplicates.
func NewMessageID() string {
	return uuid.NewString()
}

// NATSEventBus publishes JSON payloads on a NATS connection.
type NATSEventBus struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSEventBus connects to the server at url. Subjects are published as
// "<prefix>.<subject>".
func NewNATSEventBus(url, prefix string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("visitor-approval-backend"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSEventBus{conn: conn, prefix: prefix}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	return n.conn.Publish(Subject(n.prefix, subject), payload)
}

// Close flushes pending messages and closes the connection.
func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// Subject joins a prefix and a relative subject.
func Subject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// NopPublisher discards every event. Used when no NATS server is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
