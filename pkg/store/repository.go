package store

import (
	"context"

	"github.com/google/uuid"
)

// AdminRepository defines the read and administration operations over the queue's persisted state.
type AdminRepository interface {
	// ListDeadLetters returns one page of dead letters matching filter, with the table's facets.
	ListDeadLetters(ctx context.Context, filter DeadLetterFilter, page PageRequest) (DeadLetterPage, error)
	// GetDeadLetter looks a dead letter up by its composite key. The bool is false when no row matches.
	GetDeadLetter(ctx context.Context, key EnvelopeKey) (DeadLetter, bool, error)
	// SetDeadLetterReplayable sets the replayable flag on one dead letter and returns the matched row count.
	SetDeadLetterReplayable(ctx context.Context, key EnvelopeKey, replayable bool) (int64, error)
	// SetDeadLettersReplayable sets the replayable flag on every matching key in one transaction.
	SetDeadLettersReplayable(ctx context.Context, keys []EnvelopeKey, replayable bool) (int64, error)
	// DeleteDeadLetter removes one dead letter and returns the affected row count.
	DeleteDeadLetter(ctx context.Context, key EnvelopeKey) (int64, error)

	// ListIncomingEnvelopes returns one page of incoming envelopes matching filter, with the table's facets.
	ListIncomingEnvelopes(ctx context.Context, filter EnvelopeFilter, page PageRequest) (EnvelopePage, error)
	// GetIncomingEnvelope looks an envelope up by its composite key.
	GetIncomingEnvelope(ctx context.Context, key EnvelopeKey) (IncomingEnvelope, bool, error)
	// DeleteIncomingEnvelope removes one envelope and returns the affected row count.
	DeleteIncomingEnvelope(ctx context.Context, key EnvelopeKey) (int64, error)

	ListNodes(ctx context.Context, filter NodeFilter, page PageRequest) (Page[Node], error)
	GetNode(ctx context.Context, id uuid.UUID) (Node, bool, error)
	DeleteNode(ctx context.Context, id uuid.UUID) (int64, error)

	ListNodeAssignments(ctx context.Context, filter NodeAssignmentFilter, page PageRequest) (Page[NodeAssignment], error)
	GetNodeAssignment(ctx context.Context, id string) (NodeAssignment, bool, error)
	DeleteNodeAssignment(ctx context.Context, id string) (int64, error)

	// Summary counts dead letters, replayable dead letters, incoming envelopes and active nodes.
	Summary(ctx context.Context) (Summary, error)

	// Close releases the underlying connection pool.
	Close() error
}
