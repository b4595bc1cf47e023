// Package analytics emits the client's telemetry events. Emission is a side
// effect only: a failing or panicking sink is logged and never changes the
// outcome of the flow that emitted the event.
package analytics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	custom_context "github.com/yourorg/card-payments/internal/context"
)

// Event names.
const (
	EventStarted                      = "card-payments:3ds:started"
	EventConfirmSucceeded             = "card-payments:3ds:confirm-payment-source:succeeded"
	EventConfirmFailed                = "card-payments:3ds:confirm-payment-source:failed"
	EventConfirmChallengeRequired     = "card-payments:3ds:confirm-payment-source:challenge-required"
	EventChallengePresentationSuccess = "card-payments:3ds:challenge-presentation:succeeded"
	EventChallengePresentationFailure = "card-payments:3ds:challenge-presentation:failed"
	EventChallengeUserCanceled        = "card-payments:3ds:challenge:user-canceled"
	EventSucceeded                    = "card-payments:3ds:succeeded"
	EventFailed                       = "card-payments:3ds:failed"
	EventVaultContingencyUnresolved   = "card-payments:vault:contingency-unresolved"
)

// Event is what a Sink receives.
type Event struct {
	Name         string
	ClientID     string
	Environment  string
	OrderID      string
	SetupTokenID string
	Timestamp    time.Time
}

// Sink delivers events somewhere.
type Sink interface {
	Send(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Send(ctx context.Context, event Event) { f(ctx, event) }

// Service fans events out to its sinks.
type Service struct {
	clientID    string
	environment string
	sinks       []Sink
	log         *zap.Logger
	now         func() time.Time
}

// NewService creates a Service for cfg. A nil log is replaced by a no-op logger.
func NewService(cfg custom_context.CoreConfig, log *zap.Logger, sinks ...Sink) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		clientID:    cfg.ClientID,
		environment: string(cfg.Environment),
		sinks:       sinks,
		log:         log,
		now:         time.Now,
	}
}

// ForOrder returns a Tracker that tags every event with orderID.
func (s *Service) ForOrder(orderID string) *Tracker {
	return &Tracker{svc: s, orderID: orderID}
}

// ForSetupToken returns a Tracker that tags every event with setupTokenID.
func (s *Service) ForSetupToken(setupTokenID string) *Tracker {
	return &Tracker{svc: s, setupTokenID: setupTokenID}
}

// Tracker is scoped to one approve or vault flow. A nil Tracker drops events.
type Tracker struct {
	svc          *Service
	orderID      string
	setupTokenID string
}

// SendEvent emits name to the span in ctx, the log and every sink.
func (t *Tracker) SendEvent(ctx context.Context, name string) {
	if t == nil || t.svc == nil {
		return
	}
	event := Event{
		Name:         name,
		ClientID:     t.svc.clientID,
		Environment:  t.svc.environment,
		OrderID:      t.orderID,
		SetupTokenID: t.setupTokenID,
		Timestamp:    t.svc.now(),
	}

	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(
		attribute.String("order_id", event.OrderID),
		attribute.String("setup_token_id", event.SetupTokenID),
	))
	t.svc.log.Debug("analytics event",
		zap.String("event", name),
		zap.String("order_id", event.OrderID),
		zap.String("setup_token_id", event.SetupTokenID),
	)

	for _, sink := range t.svc.sinks {
		t.svc.send(ctx, sink, event)
	}
}

func (s *Service) send(ctx context.Context, sink Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("analytics sink panicked", zap.String("event", event.Name), zap.Any("panic", r))
		}
	}()
	sink.Send(ctx, event)
}
