package store

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	deadLetterRowColumns = []string{"id", "execution_time", "body", "message_type", "received_at", "source", "exception_type", "exception_message", "sent_at", "replayable"}
	envelopeRowColumns   = []string{"id", "status", "owner_id", "execution_time", "attempts", "body", "message_type", "received_at", "keep_until"}
	nodeRowColumns       = []string{"id", "node_number", "description", "uri", "started", "health_check", "capabilities"}
)

func newTestRepository(t *testing.T, schema string) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewPostgresRepository(db, schema)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func expectFacets(mock sqlmock.Sqlmock, table string, facets map[string][]string, order ...string) {
	for _, col := range order {
		rows := sqlmock.NewRows([]string{col})
		for _, v := range facets[col] {
			rows.AddRow(v)
		}
		mock.ExpectQuery(q("SELECT DISTINCT " + col + " FROM " + table + " WHERE " + col + " IS NOT NULL ORDER BY " + col)).
			WillReturnRows(rows)
	}
}

func TestListDeadLetters_FiltersBindPositionally(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_dead_letters WHERE message_type = $1 AND encode(body, 'escape') ILIKE $2 AND sent_at >= $3")).
		WithArgs("Orders.Placed", `%50\%%`, start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	id := uuid.New()
	mock.ExpectQuery(q("SELECT " + deadLetterColumns + " FROM wolverine_dead_letters WHERE message_type = $1 AND encode(body, 'escape') ILIKE $2 AND sent_at >= $3 ORDER BY execution_time DESC NULLS LAST, id, received_at LIMIT $4 OFFSET $5")).
		WithArgs("Orders.Placed", `%50\%%`, start, 20, 0).
		WillReturnRows(sqlmock.NewRows(deadLetterRowColumns).
			AddRow(id.String(), fixedNow, []byte(`xx{"discount":"50%"}`), "Orders.Placed", "node-1", "rabbitmq://orders", "TimeoutException", "timed out", start.Add(time.Hour), true))

	expectFacets(mock, "wolverine_dead_letters", map[string][]string{
		"message_type":   {"Orders.Cancelled", "Orders.Placed"},
		"exception_type": {"TimeoutException"},
	}, "message_type", "exception_type")

	page, err := repo.ListDeadLetters(context.Background(), DeadLetterFilter{
		MessageType: "Orders.Placed",
		BodySearch:  "50%",
		StartDate:   &start,
	}, PageRequest{Page: 1, PageSize: 20})
	require.NoError(t, err)

	assert.Equal(t, int64(1), page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, id, item.ID)
	assert.Equal(t, "node-1", item.ReceivedAt)
	require.NotNil(t, item.JSONBody)
	assert.Equal(t, `{"discount":"50%"}`, *item.JSONBody)
	require.NotNil(t, item.Replayable)
	assert.True(t, *item.Replayable)
	assert.Equal(t, []string{"Orders.Cancelled", "Orders.Placed"}, page.Filters.MessageTypes)
	assert.Equal(t, []string{"TimeoutException"}, page.Filters.ExceptionTypes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDeadLetters_SecondPageOfTwelve(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_dead_letters")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows := sqlmock.NewRows(deadLetterRowColumns)
	for i := 0; i < 2; i++ {
		rows.AddRow(uuid.NewString(), nil, []byte("plain text"), "Ping", "node-1", nil, nil, nil, nil, nil)
	}
	mock.ExpectQuery(q("FROM wolverine_dead_letters ORDER BY execution_time DESC NULLS LAST, id, received_at LIMIT $1 OFFSET $2")).
		WithArgs(10, 10).
		WillReturnRows(rows)

	expectFacets(mock, "wolverine_dead_letters", nil, "message_type", "exception_type")

	page, err := repo.ListDeadLetters(context.Background(), DeadLetterFilter{}, PageRequest{Page: 2, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(12), page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Items, 2)
	assert.Nil(t, page.Items[0].JSONBody)
	assert.Nil(t, page.Items[0].Replayable)
	assert.Nil(t, page.Items[0].ExecutionTime)
	assert.NotNil(t, page.Filters.MessageTypes)
	assert.Empty(t, page.Filters.MessageTypes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDeadLetters_PageFarPastTheEndIsEmpty(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_dead_letters")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q("FROM wolverine_dead_letters ORDER BY execution_time DESC NULLS LAST, id, received_at LIMIT $1 OFFSET $2")).
		WithArgs(10, math.MaxInt/10*10).
		WillReturnRows(sqlmock.NewRows(deadLetterRowColumns))
	expectFacets(mock, "wolverine_dead_letters", nil, "message_type", "exception_type")

	page, err := repo.ListDeadLetters(context.Background(), DeadLetterFilter{}, PageRequest{Page: math.MaxInt, PageSize: 10})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIncomingEnvelopes_ClampsPageRequest(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_incoming_envelopes WHERE status = $1")).
		WithArgs("Scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q("SELECT " + envelopeColumns + " FROM wolverine_incoming_envelopes WHERE status = $1 ORDER BY execution_time DESC NULLS LAST, id, received_at LIMIT $2 OFFSET $3")).
		WithArgs("Scheduled", 1, 0).
		WillReturnRows(sqlmock.NewRows(envelopeRowColumns).
			AddRow(uuid.NewString(), "Scheduled", 0, fixedNow, 2, []byte("{}"), "Ping", "node-1", nil))
	expectFacets(mock, "wolverine_incoming_envelopes", map[string][]string{
		"message_type": {"Ping"},
		"status":       {"Incoming", "Scheduled"},
	}, "message_type", "status")

	page, err := repo.ListIncomingEnvelopes(context.Background(), EnvelopeFilter{Status: "Scheduled"}, PageRequest{Page: 0, PageSize: -5})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Items[0].Attempts)
	assert.Nil(t, page.Items[0].KeepUntil)
	assert.Equal(t, []string{"Incoming", "Scheduled"}, page.Filters.Statuses)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeadLetter_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "node-1"}

	mock.ExpectQuery(q("FROM wolverine_dead_letters WHERE id = $1 AND received_at = $2")).
		WithArgs(key.ID, key.ReceivedAt).
		WillReturnRows(sqlmock.NewRows(deadLetterRowColumns))

	_, found, err := repo.GetDeadLetter(context.Background(), key)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeadLetter_Found(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "node-2"}

	mock.ExpectQuery(q("FROM wolverine_dead_letters WHERE id = $1 AND received_at = $2")).
		WithArgs(key.ID, key.ReceivedAt).
		WillReturnRows(sqlmock.NewRows(deadLetterRowColumns).
			AddRow(key.ID.String(), nil, []byte(`prefix{"a":1}`), "Ping", key.ReceivedAt, nil, "Boom", nil, nil, false))

	d, found, err := repo.GetDeadLetter(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, key, d.Key())
	require.NotNil(t, d.JSONBody)
	assert.Equal(t, `{"a":1}`, *d.JSONBody)
	require.NotNil(t, d.ExceptionType)
	assert.Equal(t, "Boom", *d.ExceptionType)
	require.NotNil(t, d.Replayable)
	assert.False(t, *d.Replayable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeadLetter_QueryError(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "node-1"}

	mock.ExpectQuery(q("FROM wolverine_dead_letters")).
		WillReturnError(errors.New("connection reset"))

	_, found, err := repo.GetDeadLetter(context.Background(), key)
	assert.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetDeadLetter_RejectsPartialKey(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	_, _, err := repo.GetDeadLetter(context.Background(), EnvelopeKey{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDeadLetterReplayable(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "node-1"}

	mock.ExpectExec(q("UPDATE wolverine_dead_letters SET replayable = $1 WHERE id = $2 AND received_at = $3")).
		WithArgs(true, key.ID, key.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.SetDeadLetterReplayable(context.Background(), key, true)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDeadLettersReplayable_CountsMatchedRows(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	keys := []EnvelopeKey{
		{ID: uuid.New(), ReceivedAt: "node-1"},
		{ID: uuid.New(), ReceivedAt: "node-1"},
		{ID: uuid.New(), ReceivedAt: "node-2"},
	}
	update := q("UPDATE wolverine_dead_letters SET replayable = $1 WHERE id = $2 AND received_at = $3")

	mock.ExpectBegin()
	mock.ExpectExec(update).WithArgs(true, keys[0].ID, keys[0].ReceivedAt).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs(true, keys[1].ID, keys[1].ReceivedAt).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(update).WithArgs(true, keys[2].ID, keys[2].ReceivedAt).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.SetDeadLettersReplayable(context.Background(), keys, true)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDeadLettersReplayable_RollsBackOnFailure(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	keys := []EnvelopeKey{
		{ID: uuid.New(), ReceivedAt: "node-1"},
		{ID: uuid.New(), ReceivedAt: "node-1"},
		{ID: uuid.New(), ReceivedAt: "node-1"},
	}
	update := q("UPDATE wolverine_dead_letters SET replayable = $1")

	mock.ExpectBegin()
	mock.ExpectExec(update).WithArgs(false, keys[0].ID, keys[0].ReceivedAt).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs(false, keys[1].ID, keys[1].ReceivedAt).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	n, err := repo.SetDeadLettersReplayable(context.Background(), keys, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDeadLettersReplayable_EmptyKeys(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	n, err := repo.SetDeadLettersReplayable(context.Background(), nil, true)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDeadLetter_ReceivedAtMismatch(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "other-node"}

	mock.ExpectExec(q("DELETE FROM wolverine_dead_letters WHERE id = $1 AND received_at = $2")).
		WithArgs(key.ID, key.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.DeleteDeadLetter(context.Background(), key)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteIncomingEnvelope(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "node-1"}

	mock.ExpectExec(q("DELETE FROM wolverine_incoming_envelopes WHERE id = $1 AND received_at = $2")).
		WithArgs(key.ID, key.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.DeleteIncomingEnvelope(context.Background(), key)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNodes_ActiveOnly(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	cutoff := fixedNow.Add(-5 * time.Minute)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_nodes WHERE health_check > $1")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q("SELECT " + nodeColumns + " FROM wolverine_nodes WHERE health_check > $1 ORDER BY health_check DESC NULLS LAST, node_number, id LIMIT $2 OFFSET $3")).
		WithArgs(cutoff, 50, 0).
		WillReturnRows(sqlmock.NewRows(nodeRowColumns).
			AddRow(uuid.NewString(), 1, "worker", "tcp://localhost:2000", fixedNow.Add(-time.Hour), fixedNow.Add(-4*time.Minute), "{wolverine://agents/a,wolverine://agents/b}"))

	page, err := repo.ListNodes(context.Background(), NodeFilter{ActiveOnly: true}, PageRequest{Page: 1, PageSize: 50})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Active)
	assert.Equal(t, []string{"wolverine://agents/a", "wolverine://agents/b"}, page.Items[0].Capabilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNode_StaleHeartbeatIsInactive(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	id := uuid.New()

	mock.ExpectQuery(q("SELECT " + nodeColumns + " FROM wolverine_nodes WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(nodeRowColumns).
			AddRow(id.String(), 2, "worker", "tcp://localhost:2001", fixedNow.Add(-time.Hour), fixedNow.Add(-6*time.Minute), "{}"))

	n, found, err := repo.GetNode(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, n.Active)
	assert.NotNil(t, n.Capabilities)
	assert.Empty(t, n.Capabilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNode_NullCapabilitiesStayNil(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	id := uuid.New()

	mock.ExpectQuery(q("SELECT " + nodeColumns + " FROM wolverine_nodes WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(nodeRowColumns).
			AddRow(id.String(), 3, "worker", "tcp://localhost:2002", fixedNow.Add(-time.Hour), fixedNow.Add(-time.Minute), nil))

	n, found, err := repo.GetNode(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, n.Active)
	assert.Nil(t, n.Capabilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNodeAssignments_ByNode(t *testing.T) {
	repo, mock := newTestRepository(t, "")
	nodeID := uuid.New()

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_node_assignments WHERE node_id = $1")).
		WithArgs(nodeID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(q("SELECT " + nodeAssignmentColumns + " FROM wolverine_node_assignments WHERE node_id = $1 ORDER BY started DESC NULLS LAST, id LIMIT $2 OFFSET $3")).
		WithArgs(nodeID, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "node_id", "started"}).
			AddRow("wolverine://agents/a", nodeID.String(), fixedNow).
			AddRow("wolverine://agents/b", nil, fixedNow.Add(-time.Minute)))

	page, err := repo.ListNodeAssignments(context.Background(), NodeAssignmentFilter{NodeID: &nodeID}, PageRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.Items[0].NodeID)
	assert.Equal(t, nodeID, *page.Items[0].NodeID)
	assert.Nil(t, page.Items[1].NodeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNodeAssignment_RequiresID(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	_, err := repo.DeleteNodeAssignment(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummary(t *testing.T) {
	repo, mock := newTestRepository(t, "")

	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_dead_letters")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_dead_letters WHERE replayable = $1")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_incoming_envelopes")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM wolverine_nodes WHERE health_check > $1")).
		WithArgs(fixedNow.Add(-5 * time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	s, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{
		TotalDeadLetters:       7,
		ReplayableDeadLetters:  3,
		TotalIncomingEnvelopes: 42,
		ActiveNodes:            2,
		GeneratedAt:            fixedNow,
	}, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaQualifiesEveryTable(t *testing.T) {
	repo, mock := newTestRepository(t, "wolverine")
	key := EnvelopeKey{ID: uuid.New(), ReceivedAt: "node-1"}

	mock.ExpectExec(q(`DELETE FROM "wolverine".wolverine_dead_letters WHERE id = $1 AND received_at = $2`)).
		WithArgs(key.ID, key.ReceivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.DeleteDeadLetter(context.Background(), key)
	assert.NoError(t, err)
	assert.Equal(t, `"wolverine".wolverine_nodes`, repo.table(nodesTable.name))
	assert.NoError(t, mock.ExpectationsWereMet())
}
