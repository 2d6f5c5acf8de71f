package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DeadLetterFacets lists every known value of the filterable dead letter columns.
type DeadLetterFacets struct {
	MessageTypes   []string `json:"messageTypes"`
	ExceptionTypes []string `json:"exceptionTypes"`
}

// EnvelopeFacets lists every known value of the filterable envelope columns.
type EnvelopeFacets struct {
	MessageTypes []string `json:"messageTypes"`
	Statuses     []string `json:"statuses"`
}

// DeadLetterPage is a page of dead letters with the facets of the whole table.
type DeadLetterPage struct {
	Page[DeadLetter]
	Filters DeadLetterFacets `json:"filters"`
}

// EnvelopePage is a page of incoming envelopes with the facets of the whole table.
type EnvelopePage struct {
	Page[IncomingEnvelope]
	Filters EnvelopeFacets `json:"filters"`
}

func facetQuery(qualified string, col column) string {
	return fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s", col, qualified, col, col)
}

// distinctValues reads the sorted, non-null distinct values of col over the whole table.
// Facets ignore the listing's filters.
func distinctValues(ctx context.Context, conn *sql.Conn, qualified string, col column) ([]string, error) {
	rows, err := conn.QueryContext(ctx, facetQuery(qualified, col))
	if err != nil {
		return nil, fmt.Errorf("facet %s: %w", col, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan facet %s: %w", col, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facet %s: %w", col, err)
	}
	return values, nil
}
