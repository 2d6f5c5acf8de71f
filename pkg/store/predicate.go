package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// column and operator are engine-owned SQL tokens. User input never becomes one of these;
// it is always bound as a positional argument.
type column string

type operator string

const (
	colMessageType   column = "message_type"
	colExceptionType column = "exception_type"
	colStatus        column = "status"
	colSentAt        column = "sent_at"
	colExecutionTime column = "execution_time"
	colHealthCheck   column = "health_check"
	colNodeID        column = "node_id"
	colReplayable    column = "replayable"
	colBodyText      column = "encode(body, 'escape')"
)

const (
	opEqual    operator = "="
	opAtLeast  operator = ">="
	opAtMost   operator = "<="
	opAfter    operator = ">"
	opContains operator = "ILIKE"
)

type predicate struct {
	column   column
	operator operator
}

// predicateSet is an ordered list of predicates with their bound values; predicates[i] binds args[i].
type predicateSet struct {
	predicates []predicate
	args       []any
}

func (p *predicateSet) add(col column, op operator, value any) {
	p.predicates = append(p.predicates, predicate{column: col, operator: op})
	p.args = append(p.args, value)
}

func (p *predicateSet) equal(col column, value string) {
	if value != "" {
		p.add(col, opEqual, value)
	}
}

func (p *predicateSet) equalValue(col column, value any) {
	p.add(col, opEqual, value)
}

// contains adds a case-insensitive substring match. LIKE metacharacters in value are escaped
// so they match literally.
func (p *predicateSet) contains(col column, value string) {
	if value != "" {
		p.add(col, opContains, "%"+escapeLike(value)+"%")
	}
}

func (p *predicateSet) atLeast(col column, t *time.Time) {
	if t != nil {
		p.add(col, opAtLeast, *t)
	}
}

func (p *predicateSet) atMost(col column, t *time.Time) {
	if t != nil {
		p.add(col, opAtMost, *t)
	}
}

func (p *predicateSet) after(col column, t time.Time) {
	p.add(col, opAfter, t)
}

func (p *predicateSet) len() int {
	return len(p.predicates)
}

// where renders the predicates as a WHERE clause with placeholders $1..$n.
// It returns an empty string when there is nothing to filter on.
func (p *predicateSet) where() string {
	if len(p.predicates) == 0 {
		return ""
	}
	parts := make([]string, len(p.predicates))
	for i, pr := range p.predicates {
		parts[i] = fmt.Sprintf("%s %s $%d", pr.column, pr.operator, i+1)
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DeadLetterFilter narrows a dead letter listing. Zero values impose no constraint.
type DeadLetterFilter struct {
	MessageType   string
	ExceptionType string
	BodySearch    string
	StartDate     *time.Time
	EndDate       *time.Time
}

func (f DeadLetterFilter) predicates() *predicateSet {
	p := &predicateSet{}
	p.equal(colMessageType, f.MessageType)
	p.equal(colExceptionType, f.ExceptionType)
	p.contains(colBodyText, f.BodySearch)
	p.atLeast(colSentAt, f.StartDate)
	p.atMost(colSentAt, f.EndDate)
	return p
}

// EnvelopeFilter narrows an incoming envelope listing. Zero values impose no constraint.
type EnvelopeFilter struct {
	MessageType string
	Status      string
	BodySearch  string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (f EnvelopeFilter) predicates() *predicateSet {
	p := &predicateSet{}
	p.equal(colMessageType, f.MessageType)
	p.equal(colStatus, f.Status)
	p.contains(colBodyText, f.BodySearch)
	p.atLeast(colExecutionTime, f.StartDate)
	p.atMost(colExecutionTime, f.EndDate)
	return p
}

// NodeFilter narrows a node listing.
type NodeFilter struct {
	ActiveOnly bool
}

func (f NodeFilter) predicates(now time.Time) *predicateSet {
	p := &predicateSet{}
	if f.ActiveOnly {
		p.after(colHealthCheck, now.Add(-activeNodeWindow))
	}
	return p
}

// NodeAssignmentFilter narrows a node assignment listing.
type NodeAssignmentFilter struct {
	NodeID *uuid.UUID
}

func (f NodeAssignmentFilter) predicates() *predicateSet {
	p := &predicateSet{}
	if f.NodeID != nil {
		p.equalValue(colNodeID, *f.NodeID)
	}
	return p
}
