package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// PageRequest selects a 1-indexed window of a listing. Values below 1 are clamped to 1, and Page
// is capped so the window offset always fits in an int.
type PageRequest struct {
	Page     int
	PageSize int
}

func (r PageRequest) normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 1
	}
	if r.Page-1 > math.MaxInt/r.PageSize {
		r.Page = math.MaxInt/r.PageSize + 1
	}
	return r
}

func (r PageRequest) offset() int {
	return (r.Page - 1) * r.PageSize
}

// Page is one window of a filtered listing. TotalCount counts the whole filtered set.
type Page[T any] struct {
	Items      []T   `json:"data"`
	TotalCount int64 `json:"count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

func newPage[T any](items []T, total int64, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if total > 0 {
		pages = int((total-1)/int64(req.PageSize) + 1)
	}
	return Page[T]{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: pages,
	}
}

// table describes how a listing of one entity kind is read.
type table struct {
	name    string
	columns string
	// recency orders the listing, newest first, with NULLs after every non-NULL row.
	recency column
	// tiebreak makes the order total so pages never overlap.
	tiebreak string
}

var (
	deadLettersTable = table{
		name:     "wolverine_dead_letters",
		columns:  deadLetterColumns,
		recency:  colExecutionTime,
		tiebreak: "id, received_at",
	}
	envelopesTable = table{
		name:     "wolverine_incoming_envelopes",
		columns:  envelopeColumns,
		recency:  colExecutionTime,
		tiebreak: "id, received_at",
	}
	nodesTable = table{
		name:     "wolverine_nodes",
		columns:  nodeColumns,
		recency:  colHealthCheck,
		tiebreak: "node_number, id",
	}
	nodeAssignmentsTable = table{
		name:     "wolverine_node_assignments",
		columns:  nodeAssignmentColumns,
		recency:  "started",
		tiebreak: "id",
	}
)

func countQuery(qualified string, preds *predicateSet) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", qualified, preds.where())
}

func pageQuery(t table, qualified string, preds *predicateSet) string {
	n := preds.len()
	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s DESC NULLS LAST, %s LIMIT $%d OFFSET $%d",
		t.columns, qualified, preds.where(), t.recency, t.tiebreak, n+1, n+2)
}

// queryPage counts the filtered set, then reads one window of it through scan.
func queryPage[T any](
	ctx context.Context,
	conn *sql.Conn,
	t table,
	qualified string,
	preds *predicateSet,
	req PageRequest,
	scan func(rowScanner) (T, error),
) (Page[T], error) {
	req = req.normalize()

	var total int64
	if err := conn.QueryRowContext(ctx, countQuery(qualified, preds), preds.args...).Scan(&total); err != nil {
		return Page[T]{}, fmt.Errorf("count %s: %w", t.name, err)
	}

	args := append(append([]any{}, preds.args...), req.PageSize, req.offset())
	rows, err := conn.QueryContext(ctx, pageQuery(t, qualified, preds), args...)
	if err != nil {
		return Page[T]{}, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return Page[T]{}, fmt.Errorf("scan %s row: %w", t.name, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page[T]{}, fmt.Errorf("iterate %s rows: %w", t.name, err)
	}
	return newPage(items, total, req), nil
}
