package admin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/queue-admin/pkg/broker"
	"github.com/zoff-tech/queue-admin/pkg/store"
)

const auditPublishTimeout = 5 * time.Second

// Service is the administration facade the HTTP layer talks to. Reads go straight to the
// repository; mutations are logged and, when they change something, announced on the broker.
type Service struct {
	repo   store.AdminRepository
	broker broker.MessageBroker
	topic  string
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new instance of Service. Audit events are published to topic.
func NewService(repo store.AdminRepository, broker broker.MessageBroker, topic string, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		broker: broker,
		topic:  topic,
		logger: logger.With().Str("component", "admin").Logger(),
		tracer: otel.Tracer("queue-admin"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Summary(ctx context.Context) (store.Summary, error) {
	return s.repo.Summary(ctx)
}

func (s *Service) ListDeadLetters(ctx context.Context, filter store.DeadLetterFilter, page store.PageRequest) (store.DeadLetterPage, error) {
	return s.repo.ListDeadLetters(ctx, filter, page)
}

func (s *Service) GetDeadLetter(ctx context.Context, key store.EnvelopeKey) (store.DeadLetter, bool, error) {
	return s.repo.GetDeadLetter(ctx, key)
}

func (s *Service) SetDeadLetterReplayable(ctx context.Context, key store.EnvelopeKey, replayable bool) (int64, error) {
	n, err := s.repo.SetDeadLetterReplayable(ctx, key, replayable)
	if err != nil {
		return 0, err
	}
	s.record(ctx, AuditEvent{
		Action:     ActionSetReplayable,
		Entity:     EntityDeadLetter,
		Keys:       []store.EnvelopeKey{key},
		Replayable: &replayable,
		Affected:   n,
	})
	return n, nil
}

func (s *Service) SetDeadLettersReplayable(ctx context.Context, keys []store.EnvelopeKey, replayable bool) (int64, error) {
	n, err := s.repo.SetDeadLettersReplayable(ctx, keys, replayable)
	if err != nil {
		return 0, err
	}
	s.record(ctx, AuditEvent{
		Action:     ActionSetReplayable,
		Entity:     EntityDeadLetter,
		Keys:       keys,
		Replayable: &replayable,
		Affected:   n,
	})
	return n, nil
}

func (s *Service) DeleteDeadLetter(ctx context.Context, key store.EnvelopeKey) (int64, error) {
	n, err := s.repo.DeleteDeadLetter(ctx, key)
	if err != nil {
		return 0, err
	}
	s.record(ctx, AuditEvent{Action: ActionDelete, Entity: EntityDeadLetter, Keys: []store.EnvelopeKey{key}, Affected: n})
	return n, nil
}

func (s *Service) ListIncomingEnvelopes(ctx context.Context, filter store.EnvelopeFilter, page store.PageRequest) (store.EnvelopePage, error) {
	return s.repo.ListIncomingEnvelopes(ctx, filter, page)
}

func (s *Service) GetIncomingEnvelope(ctx context.Context, key store.EnvelopeKey) (store.IncomingEnvelope, bool, error) {
	return s.repo.GetIncomingEnvelope(ctx, key)
}

func (s *Service) DeleteIncomingEnvelope(ctx context.Context, key store.EnvelopeKey) (int64, error) {
	n, err := s.repo.DeleteIncomingEnvelope(ctx, key)
	if err != nil {
		return 0, err
	}
	s.record(ctx, AuditEvent{Action: ActionDelete, Entity: EntityIncomingEnvelope, Keys: []store.EnvelopeKey{key}, Affected: n})
	return n, nil
}

func (s *Service) ListNodes(ctx context.Context, filter store.NodeFilter, page store.PageRequest) (store.Page[store.Node], error) {
	return s.repo.ListNodes(ctx, filter, page)
}

func (s *Service) GetNode(ctx context.Context, id uuid.UUID) (store.Node, bool, error) {
	return s.repo.GetNode(ctx, id)
}

func (s *Service) DeleteNode(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := s.repo.DeleteNode(ctx, id)
	if err != nil {
		return 0, err
	}
	s.record(ctx, AuditEvent{Action: ActionDelete, Entity: EntityNode, TargetID: id.String(), Affected: n})
	return n, nil
}

func (s *Service) ListNodeAssignments(ctx context.Context, filter store.NodeAssignmentFilter, page store.PageRequest) (store.Page[store.NodeAssignment], error) {
	return s.repo.ListNodeAssignments(ctx, filter, page)
}

func (s *Service) GetNodeAssignment(ctx context.Context, id string) (store.NodeAssignment, bool, error) {
	return s.repo.GetNodeAssignment(ctx, id)
}

func (s *Service) DeleteNodeAssignment(ctx context.Context, id string) (int64, error) {
	n, err := s.repo.DeleteNodeAssignment(ctx, id)
	if err != nil {
		return 0, err
	}
	s.record(ctx, AuditEvent{Action: ActionDelete, Entity: EntityNodeAssignment, TargetID: id, Affected: n})
	return n, nil
}

// record logs a committed mutation and publishes it when it touched at least one row.
// Publishing never fails the mutation: the store change is already durable.
func (s *Service) record(ctx context.Context, event AuditEvent) {
	event.ID = uuid.New()
	event.OccurredAt = s.now()

	s.logger.Info().
		Str("action", string(event.Action)).
		Str("entity", string(event.Entity)).
		Int("keys", len(event.Keys)).
		Str("target_id", event.TargetID).
		Int64("affected", event.Affected).
		Msg("mutation applied")

	if event.Affected == 0 {
		return
	}

	ctx, span := s.tracer.Start(ctx, "PublishAuditEvent", trace.WithAttributes(
		attribute.String("audit.id", event.ID.String()),
		attribute.String("audit.action", string(event.Action)),
		attribute.String("audit.entity", string(event.Entity)),
		attribute.Int64("audit.affected", event.Affected),
	))
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("audit_id", event.ID.String()).Msg("failed to encode audit event")
		return
	}

	// the request may already be finished; the publish still gets its own deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()

	headers := map[string]string{
		"audit-id": event.ID.String(),
		"action":   string(event.Action),
		"entity":   string(event.Entity),
	}
	if err := s.broker.Publish(ctx, s.topic, payload, headers); err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("audit_id", event.ID.String()).Msg("failed to publish audit event")
	}
}
