package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type PostgresRepository struct {
	db     *sql.DB // using database/sql
	schema string
	now    func() time.Time
	tracer trace.Tracer
}

// NewPostgresRepository wraps db. When schema is non-empty every table is qualified with it.
func NewPostgresRepository(db *sql.DB, schema string) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		schema: strings.TrimSpace(schema),
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("queue-admin"),
	}
}

func (p *PostgresRepository) table(name string) string {
	if p.schema == "" {
		return name
	}
	return pq.QuoteIdentifier(p.schema) + "." + name
}

func (p *PostgresRepository) Close() error {
	return p.db.Close()
}

// Dead letters

func (p *PostgresRepository) ListDeadLetters(ctx context.Context, filter DeadLetterFilter, page PageRequest) (DeadLetterPage, error) {
	var result DeadLetterPage
	qualified := p.table(deadLettersTable.name)
	err := p.withConn(ctx, "ListDeadLetters", func(ctx context.Context, conn *sql.Conn) (int, error) {
		items, err := queryPage(ctx, conn, deadLettersTable, qualified, filter.predicates(), page, scanDeadLetter)
		if err != nil {
			return 0, err
		}
		messageTypes, err := distinctValues(ctx, conn, qualified, colMessageType)
		if err != nil {
			return 0, err
		}
		exceptionTypes, err := distinctValues(ctx, conn, qualified, colExceptionType)
		if err != nil {
			return 0, err
		}
		result = DeadLetterPage{
			Page:    items,
			Filters: DeadLetterFacets{MessageTypes: messageTypes, ExceptionTypes: exceptionTypes},
		}
		return len(items.Items), nil
	})
	if err != nil {
		return DeadLetterPage{}, fmt.Errorf("store: list dead letters: %w", err)
	}
	return result, nil
}

func (p *PostgresRepository) GetDeadLetter(ctx context.Context, key EnvelopeKey) (DeadLetter, bool, error) {
	if err := validateKey(key); err != nil {
		return DeadLetter{}, false, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND received_at = $2",
		deadLetterColumns, p.table(deadLettersTable.name))

	var (
		d     DeadLetter
		found bool
	)
	err := p.withConn(ctx, "GetDeadLetter", func(ctx context.Context, conn *sql.Conn) (int, error) {
		var err error
		d, err = scanDeadLetter(conn.QueryRowContext(ctx, query, key.ID, key.ReceivedAt))
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		found = true
		return 1, nil
	})
	if err != nil {
		return DeadLetter{}, false, fmt.Errorf("store: get dead letter %s: %w", key.ID, err)
	}
	return d, found, nil
}

func (p *PostgresRepository) SetDeadLetterReplayable(ctx context.Context, key EnvelopeKey, replayable bool) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	n, err := p.exec(ctx, "SetDeadLetterReplayable", p.setReplayableQuery(), replayable, key.ID, key.ReceivedAt)
	if err != nil {
		return 0, fmt.Errorf("store: set dead letter %s replayable: %w", key.ID, err)
	}
	return n, nil
}

// SetDeadLettersReplayable applies replayable to every key inside one transaction. Keys that
// match no row are skipped; any store failure rolls the whole batch back.
func (p *PostgresRepository) SetDeadLettersReplayable(ctx context.Context, keys []EnvelopeKey, replayable bool) (int64, error) {
	if err := validateKeys(keys); err != nil {
		return 0, err
	}
	query := p.setReplayableQuery()

	var total int64
	err := p.withTransaction(ctx, "SetDeadLettersReplayable", func(ctx context.Context, tx *sql.Tx) (int, error) {
		var matched int64
		for _, key := range keys {
			res, err := tx.ExecContext(ctx, query, replayable, key.ID, key.ReceivedAt)
			if err != nil {
				return 0, err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return 0, err
			}
			matched += n
		}
		total = matched
		return int(matched), nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: set %d dead letters replayable: %w", len(keys), err)
	}
	return total, nil
}

func (p *PostgresRepository) setReplayableQuery() string {
	return fmt.Sprintf("UPDATE %s SET replayable = $1 WHERE id = $2 AND received_at = $3", p.table(deadLettersTable.name))
}

func (p *PostgresRepository) DeleteDeadLetter(ctx context.Context, key EnvelopeKey) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND received_at = $2", p.table(deadLettersTable.name))
	n, err := p.exec(ctx, "DeleteDeadLetter", query, key.ID, key.ReceivedAt)
	if err != nil {
		return 0, fmt.Errorf("store: delete dead letter %s: %w", key.ID, err)
	}
	return n, nil
}

// Incoming envelopes

func (p *PostgresRepository) ListIncomingEnvelopes(ctx context.Context, filter EnvelopeFilter, page PageRequest) (EnvelopePage, error) {
	var result EnvelopePage
	qualified := p.table(envelopesTable.name)
	err := p.withConn(ctx, "ListIncomingEnvelopes", func(ctx context.Context, conn *sql.Conn) (int, error) {
		items, err := queryPage(ctx, conn, envelopesTable, qualified, filter.predicates(), page, scanEnvelope)
		if err != nil {
			return 0, err
		}
		messageTypes, err := distinctValues(ctx, conn, qualified, colMessageType)
		if err != nil {
			return 0, err
		}
		statuses, err := distinctValues(ctx, conn, qualified, colStatus)
		if err != nil {
			return 0, err
		}
		result = EnvelopePage{
			Page:    items,
			Filters: EnvelopeFacets{MessageTypes: messageTypes, Statuses: statuses},
		}
		return len(items.Items), nil
	})
	if err != nil {
		return EnvelopePage{}, fmt.Errorf("store: list incoming envelopes: %w", err)
	}
	return result, nil
}

func (p *PostgresRepository) GetIncomingEnvelope(ctx context.Context, key EnvelopeKey) (IncomingEnvelope, bool, error) {
	if err := validateKey(key); err != nil {
		return IncomingEnvelope{}, false, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND received_at = $2",
		envelopeColumns, p.table(envelopesTable.name))

	var (
		e     IncomingEnvelope
		found bool
	)
	err := p.withConn(ctx, "GetIncomingEnvelope", func(ctx context.Context, conn *sql.Conn) (int, error) {
		var err error
		e, err = scanEnvelope(conn.QueryRowContext(ctx, query, key.ID, key.ReceivedAt))
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		found = true
		return 1, nil
	})
	if err != nil {
		return IncomingEnvelope{}, false, fmt.Errorf("store: get incoming envelope %s: %w", key.ID, err)
	}
	return e, found, nil
}

func (p *PostgresRepository) DeleteIncomingEnvelope(ctx context.Context, key EnvelopeKey) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND received_at = $2", p.table(envelopesTable.name))
	n, err := p.exec(ctx, "DeleteIncomingEnvelope", query, key.ID, key.ReceivedAt)
	if err != nil {
		return 0, fmt.Errorf("store: delete incoming envelope %s: %w", key.ID, err)
	}
	return n, nil
}

// Nodes

func (p *PostgresRepository) ListNodes(ctx context.Context, filter NodeFilter, page PageRequest) (Page[Node], error) {
	var result Page[Node]
	now := p.now()
	scan := func(row rowScanner) (Node, error) { return scanNode(row, now) }
	err := p.withConn(ctx, "ListNodes", func(ctx context.Context, conn *sql.Conn) (int, error) {
		var err error
		result, err = queryPage(ctx, conn, nodesTable, p.table(nodesTable.name), filter.predicates(now), page, scan)
		return len(result.Items), err
	})
	if err != nil {
		return Page[Node]{}, fmt.Errorf("store: list nodes: %w", err)
	}
	return result, nil
}

func (p *PostgresRepository) GetNode(ctx context.Context, id uuid.UUID) (Node, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", nodeColumns, p.table(nodesTable.name))

	var (
		n     Node
		found bool
	)
	err := p.withConn(ctx, "GetNode", func(ctx context.Context, conn *sql.Conn) (int, error) {
		var err error
		n, err = scanNode(conn.QueryRowContext(ctx, query, id), p.now())
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		found = true
		return 1, nil
	})
	if err != nil {
		return Node{}, false, fmt.Errorf("store: get node %s: %w", id, err)
	}
	return n, found, nil
}

func (p *PostgresRepository) DeleteNode(ctx context.Context, id uuid.UUID) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.table(nodesTable.name))
	n, err := p.exec(ctx, "DeleteNode", query, id)
	if err != nil {
		return 0, fmt.Errorf("store: delete node %s: %w", id, err)
	}
	return n, nil
}

// Node assignments

func (p *PostgresRepository) ListNodeAssignments(ctx context.Context, filter NodeAssignmentFilter, page PageRequest) (Page[NodeAssignment], error) {
	var result Page[NodeAssignment]
	err := p.withConn(ctx, "ListNodeAssignments", func(ctx context.Context, conn *sql.Conn) (int, error) {
		var err error
		result, err = queryPage(ctx, conn, nodeAssignmentsTable, p.table(nodeAssignmentsTable.name), filter.predicates(), page, scanNodeAssignment)
		return len(result.Items), err
	})
	if err != nil {
		return Page[NodeAssignment]{}, fmt.Errorf("store: list node assignments: %w", err)
	}
	return result, nil
}

func (p *PostgresRepository) GetNodeAssignment(ctx context.Context, id string) (NodeAssignment, bool, error) {
	if strings.TrimSpace(id) == "" {
		return NodeAssignment{}, false, fmt.Errorf("%w: node assignment id is required", ErrInvalidInput)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", nodeAssignmentColumns, p.table(nodeAssignmentsTable.name))

	var (
		a     NodeAssignment
		found bool
	)
	err := p.withConn(ctx, "GetNodeAssignment", func(ctx context.Context, conn *sql.Conn) (int, error) {
		var err error
		a, err = scanNodeAssignment(conn.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		found = true
		return 1, nil
	})
	if err != nil {
		return NodeAssignment{}, false, fmt.Errorf("store: get node assignment %s: %w", id, err)
	}
	return a, found, nil
}

func (p *PostgresRepository) DeleteNodeAssignment(ctx context.Context, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, fmt.Errorf("%w: node assignment id is required", ErrInvalidInput)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", p.table(nodeAssignmentsTable.name))
	n, err := p.exec(ctx, "DeleteNodeAssignment", query, id)
	if err != nil {
		return 0, fmt.Errorf("store: delete node assignment %s: %w", id, err)
	}
	return n, nil
}

// Summary

func (p *PostgresRepository) Summary(ctx context.Context) (Summary, error) {
	now := p.now()
	replayable := &predicateSet{}
	replayable.equalValue(colReplayable, true)

	s := Summary{GeneratedAt: now}
	counts := []struct {
		table string
		preds *predicateSet
		dest  *int64
	}{
		{deadLettersTable.name, &predicateSet{}, &s.TotalDeadLetters},
		{deadLettersTable.name, replayable, &s.ReplayableDeadLetters},
		{envelopesTable.name, &predicateSet{}, &s.TotalIncomingEnvelopes},
		{nodesTable.name, NodeFilter{ActiveOnly: true}.predicates(now), &s.ActiveNodes},
	}

	err := p.withConn(ctx, "Summary", func(ctx context.Context, conn *sql.Conn) (int, error) {
		for _, c := range counts {
			if err := conn.QueryRowContext(ctx, countQuery(p.table(c.table), c.preds), c.preds.args...).Scan(c.dest); err != nil {
				return 0, fmt.Errorf("count %s: %w", c.table, err)
			}
		}
		return len(counts), nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("store: summary: %w", err)
	}
	return s, nil
}

func (p *PostgresRepository) exec(ctx context.Context, spanName, query string, args ...any) (int64, error) {
	var affected int64
	err := p.withConn(ctx, spanName, func(ctx context.Context, conn *sql.Conn) (int, error) {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		affected, err = res.RowsAffected()
		return int(affected), err
	})
	return affected, err
}

// withConn runs fn on a single pooled connection inside a span. The connection goes back to
// the pool when fn returns, whatever the outcome.
func (p *PostgresRepository) withConn(ctx context.Context, spanName string, fn func(ctx context.Context, conn *sql.Conn) (int, error)) error {
	ctx, span := p.tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()
	conn, err := p.db.Conn(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer conn.Close()

	rows, err := fn(ctx, conn)
	if err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, spanName, rows, time.Since(start))
	return nil
}

// withTransaction runs fn inside one transaction: committed when fn succeeds, rolled back otherwise.
func (p *PostgresRepository) withTransaction(ctx context.Context, spanName string, fn func(ctx context.Context, tx *sql.Tx) (int, error)) error {
	ctx, span := p.tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}

	rows, err := fn(ctx, tx)
	if err != nil {
		span.RecordError(err)
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, spanName, rows, time.Since(start))
	return nil
}
