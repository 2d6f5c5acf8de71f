package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/zoff-tech/queue-admin/pkg/store"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) ListDeadLetters(ctx context.Context, filter store.DeadLetterFilter, page store.PageRequest) (store.DeadLetterPage, error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(store.DeadLetterPage), args.Error(1)
}

func (m *mockRepository) GetDeadLetter(ctx context.Context, key store.EnvelopeKey) (store.DeadLetter, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(store.DeadLetter), args.Bool(1), args.Error(2)
}

func (m *mockRepository) SetDeadLetterReplayable(ctx context.Context, key store.EnvelopeKey, replayable bool) (int64, error) {
	args := m.Called(ctx, key, replayable)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) SetDeadLettersReplayable(ctx context.Context, keys []store.EnvelopeKey, replayable bool) (int64, error) {
	args := m.Called(ctx, keys, replayable)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) DeleteDeadLetter(ctx context.Context, key store.EnvelopeKey) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) ListIncomingEnvelopes(ctx context.Context, filter store.EnvelopeFilter, page store.PageRequest) (store.EnvelopePage, error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(store.EnvelopePage), args.Error(1)
}

func (m *mockRepository) GetIncomingEnvelope(ctx context.Context, key store.EnvelopeKey) (store.IncomingEnvelope, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(store.IncomingEnvelope), args.Bool(1), args.Error(2)
}

func (m *mockRepository) DeleteIncomingEnvelope(ctx context.Context, key store.EnvelopeKey) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) ListNodes(ctx context.Context, filter store.NodeFilter, page store.PageRequest) (store.Page[store.Node], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(store.Page[store.Node]), args.Error(1)
}

func (m *mockRepository) GetNode(ctx context.Context, id uuid.UUID) (store.Node, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(store.Node), args.Bool(1), args.Error(2)
}

func (m *mockRepository) DeleteNode(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) ListNodeAssignments(ctx context.Context, filter store.NodeAssignmentFilter, page store.PageRequest) (store.Page[store.NodeAssignment], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(store.Page[store.NodeAssignment]), args.Error(1)
}

func (m *mockRepository) GetNodeAssignment(ctx context.Context, id string) (store.NodeAssignment, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(store.NodeAssignment), args.Bool(1), args.Error(2)
}

func (m *mockRepository) DeleteNodeAssignment(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) Summary(ctx context.Context) (store.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.Summary), args.Error(1)
}

func (m *mockRepository) Close() error {
	return m.Called().Error(0)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, topic string, data []byte, headers map[string]string) error {
	return m.Called(ctx, topic, data, headers).Error(0)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}
