package store

import (
	"time"

	"github.com/google/uuid"
)

// activeNodeWindow is how recent a node heartbeat must be for the node to count as active.
const activeNodeWindow = 5 * time.Minute

// EnvelopeKey is the composite identity of a dead letter or an incoming envelope.
// The id alone never identifies a row: received_at is part of the key.
type EnvelopeKey struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	ReceivedAt string    `json:"receivedAt" validate:"required"`
}

// DeadLetter is a message whose processing failed permanently.
type DeadLetter struct {
	ID               uuid.UUID  `json:"id"`
	ReceivedAt       string     `json:"receivedAt"`
	ExecutionTime    *time.Time `json:"executionTime"`
	Body             []byte     `json:"body"`
	MessageType      string     `json:"messageType"`
	Source           *string    `json:"source"`
	ExceptionType    *string    `json:"exceptionType"`
	ExceptionMessage *string    `json:"exceptionMessage"`
	SentAt           *time.Time `json:"sentAt"`
	Replayable       *bool      `json:"replayable"`
	JSONBody         *string    `json:"jsonBody"`
}

// Key returns the composite identity of the dead letter.
func (d DeadLetter) Key() EnvelopeKey {
	return EnvelopeKey{ID: d.ID, ReceivedAt: d.ReceivedAt}
}

// IncomingEnvelope is a message received by a node and persisted before handling.
type IncomingEnvelope struct {
	ID            uuid.UUID  `json:"id"`
	ReceivedAt    string     `json:"receivedAt"`
	Status        string     `json:"status"`
	OwnerID       int        `json:"ownerId"`
	ExecutionTime *time.Time `json:"executionTime"`
	Attempts      int        `json:"attempts"`
	Body          []byte     `json:"body"`
	MessageType   string     `json:"messageType"`
	KeepUntil     *time.Time `json:"keepUntil"`
}

// Key returns the composite identity of the envelope.
func (e IncomingEnvelope) Key() EnvelopeKey {
	return EnvelopeKey{ID: e.ID, ReceivedAt: e.ReceivedAt}
}

// Node is a worker process registered with the queue.
type Node struct {
	ID           uuid.UUID `json:"id"`
	NodeNumber   int       `json:"nodeNumber"`
	Description  string    `json:"description"`
	URI          string    `json:"uri"`
	Started      time.Time `json:"started"`
	HealthCheck  time.Time `json:"healthCheck"`
	Capabilities []string  `json:"capabilities"`
	// Active is derived when the row is read; it is not stored.
	Active bool `json:"active"`
}

// IsActiveAt reports whether the node's last heartbeat falls inside the freshness window ending at now.
func (n Node) IsActiveAt(now time.Time) bool {
	return n.HealthCheck.After(now.Add(-activeNodeWindow))
}

// NodeAssignment records which node currently owns an agent or queue.
type NodeAssignment struct {
	ID      string     `json:"id"`
	NodeID  *uuid.UUID `json:"nodeId"`
	Started time.Time  `json:"started"`
}

// Summary is the cross-cutting dashboard view.
type Summary struct {
	TotalDeadLetters       int64     `json:"totalDeadLetters"`
	ReplayableDeadLetters  int64     `json:"replayableDeadLetters"`
	TotalIncomingEnvelopes int64     `json:"totalIncomingEnvelopes"`
	ActiveNodes            int64     `json:"activeNodes"`
	GeneratedAt            time.Time `json:"timestamp"`
}
