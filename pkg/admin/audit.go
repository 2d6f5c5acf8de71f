package admin

import (
	"time"

	"github.com/google/uuid"
	"github.com/zoff-tech/queue-admin/pkg/store"
)

type Entity string

const (
	EntityDeadLetter       Entity = "dead_letter"
	EntityIncomingEnvelope Entity = "incoming_envelope"
	EntityNode             Entity = "node"
	EntityNodeAssignment   Entity = "node_assignment"
)

type Action string

const (
	ActionSetReplayable Action = "set_replayable"
	ActionDelete        Action = "delete"
)

// AuditEvent describes one operator mutation that changed at least one row.
type AuditEvent struct {
	ID     uuid.UUID `json:"id"`
	Action Action    `json:"action"`
	Entity Entity    `json:"entity"`
	// Keys is set for dead letters and incoming envelopes, TargetID for nodes and assignments.
	Keys       []store.EnvelopeKey `json:"keys,omitempty"`
	TargetID   string              `json:"targetId,omitempty"`
	Replayable *bool               `json:"replayable,omitempty"`
	Affected   int64               `json:"affected"`
	OccurredAt time.Time           `json:"occurredAt"`
}
