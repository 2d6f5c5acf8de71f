package store

import (
	"bytes"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const deadLetterColumns = "id, execution_time, body, message_type, received_at, source, exception_type, exception_message, sent_at, replayable"

func scanDeadLetter(row rowScanner) (DeadLetter, error) {
	var (
		d                                   DeadLetter
		executionTime, sentAt               sql.NullTime
		source, exceptionType, exceptionMsg sql.NullString
		replayable                          sql.NullBool
	)
	if err := row.Scan(
		&d.ID,
		&executionTime,
		&d.Body,
		&d.MessageType,
		&d.ReceivedAt,
		&source,
		&exceptionType,
		&exceptionMsg,
		&sentAt,
		&replayable,
	); err != nil {
		return DeadLetter{}, err
	}
	d.ExecutionTime = timePtr(executionTime)
	d.Source = stringPtr(source)
	d.ExceptionType = stringPtr(exceptionType)
	d.ExceptionMessage = stringPtr(exceptionMsg)
	d.SentAt = timePtr(sentAt)
	if replayable.Valid {
		v := replayable.Bool
		d.Replayable = &v
	}
	d.JSONBody = ExtractJSONBody(d.Body)
	return d, nil
}

const envelopeColumns = "id, status, owner_id, execution_time, attempts, body, message_type, received_at, keep_until"

func scanEnvelope(row rowScanner) (IncomingEnvelope, error) {
	var (
		e                        IncomingEnvelope
		executionTime, keepUntil sql.NullTime
	)
	if err := row.Scan(
		&e.ID,
		&e.Status,
		&e.OwnerID,
		&executionTime,
		&e.Attempts,
		&e.Body,
		&e.MessageType,
		&e.ReceivedAt,
		&keepUntil,
	); err != nil {
		return IncomingEnvelope{}, err
	}
	e.ExecutionTime = timePtr(executionTime)
	e.KeepUntil = timePtr(keepUntil)
	return e, nil
}

const nodeColumns = "id, node_number, description, uri, started, health_check, capabilities"

// scanNode maps a node row; now is the instant the active flag is derived against.
func scanNode(row rowScanner, now time.Time) (Node, error) {
	var n Node
	// a NULL capabilities column leaves Capabilities nil
	if err := row.Scan(
		&n.ID,
		&n.NodeNumber,
		&n.Description,
		&n.URI,
		&n.Started,
		&n.HealthCheck,
		pq.Array(&n.Capabilities),
	); err != nil {
		return Node{}, err
	}
	n.Active = n.IsActiveAt(now)
	return n, nil
}

const nodeAssignmentColumns = "id, node_id, started"

func scanNodeAssignment(row rowScanner) (NodeAssignment, error) {
	var (
		a      NodeAssignment
		nodeID uuid.NullUUID
	)
	if err := row.Scan(&a.ID, &nodeID, &a.Started); err != nil {
		return NodeAssignment{}, err
	}
	if nodeID.Valid {
		id := nodeID.UUID
		a.NodeID = &id
	}
	return a, nil
}

// ExtractJSONBody returns the text of body starting at its first '{', or nil when body
// contains no '{'. Invalid UTF-8 sequences are replaced so the result is always printable.
func ExtractJSONBody(body []byte) *string {
	i := bytes.IndexByte(body, '{')
	if i < 0 {
		return nil
	}
	s := strings.ToValidUTF8(string(body[i:]), "\uFFFD")
	return &s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
