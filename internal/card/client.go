package card

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/card-payments/internal/analytics"
	"github.com/yourorg/card-payments/internal/challenge"
	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/gateway"
	"github.com/yourorg/card-payments/internal/policy"
	"github.com/yourorg/card-payments/internal/reporting"
)

const tracerName = "github.com/yourorg/card-payments/internal/card"

// CardClient approves orders and vaults cards. Each ApproveOrder or Vault
// call runs as its own goroutine and reports exactly one outcome to the
// registered observers, except for the unresolved vault contingency.
type CardClient struct {
	config    custom_context.CoreConfig
	api       gateway.APIFetcher
	graphQL   gateway.GraphQLCaller
	runner    challenge.Runner
	analytics *analytics.Service
	journal   *reporting.Journal
	builder   *requestBuilder
	approval  *policy.LinkPolicy
	vaulting  *policy.LinkPolicy
	observers reporting.ObserverSet
	tracer    trace.Tracer
	log       *zap.Logger

	// challengeDeadline bounds how long a runner may hold a challenge open.
	challengeDeadline time.Duration
	graphQLSet        bool
}

// Option configures a CardClient.
type Option func(*CardClient)

// WithAPIClient replaces the REST client.
func WithAPIClient(api gateway.APIFetcher) Option {
	return func(c *CardClient) { c.api = api }
}

// WithGraphQLClient replaces the GraphQL client. nil, including a nil
// *gateway.GraphQLClient, leaves the client without GraphQL, and Vault then
// fails with ErrUnknown.
func WithGraphQLClient(gql gateway.GraphQLCaller) Option {
	if g, ok := gql.(*gateway.GraphQLClient); ok && g == nil {
		gql = nil
	}
	return func(c *CardClient) {
		c.graphQL = gql
		c.graphQLSet = true
	}
}

// WithChallengeRunner replaces the loopback runner.
func WithChallengeRunner(r challenge.Runner) Option {
	return func(c *CardClient) { c.runner = r }
}

// WithAnalytics sets the analytics service events are sent through.
func WithAnalytics(s *analytics.Service) Option {
	return func(c *CardClient) { c.analytics = s }
}

// WithJournal records every outcome in j.
func WithJournal(j *reporting.Journal) Option {
	return func(c *CardClient) { c.journal = j }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *CardClient) { c.log = l }
}

// WithTracerProvider sets where spans go. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *CardClient) { c.tracer = tp.Tracer(tracerName) }
}

// NewCardClient creates a client for cfg. Collaborators not supplied as
// options are built from cfg.
func NewCardClient(cfg custom_context.CoreConfig, opts ...Option) (*CardClient, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &CardClient{config: cfg, challengeDeadline: cfg.Timeouts.ChallengeTimeout + challengeGrace}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.analytics == nil {
		c.analytics = analytics.NewService(cfg, c.log)
	}
	if c.api == nil {
		c.api = gateway.NewAPIClient(cfg, nil, gateway.WithLogger(c.log))
	}
	if !c.graphQLSet && !cfg.DisableGraphQL {
		c.graphQL = gateway.NewGraphQLClient(cfg, nil, gateway.WithLogger(c.log))
	}
	if c.runner == nil {
		runner, err := challenge.NewLoopbackRunner(cfg.ReturnURL, cfg.CancelURL, challenge.SystemBrowser, c.log)
		if err != nil {
			return nil, fmt.Errorf("card client: %w", err)
		}
		runner.Timeout = cfg.Timeouts.ChallengeTimeout
		c.runner = runner
	}

	var err error
	if c.approval, err = policy.NewLinkPolicy(policy.ApprovalRules()); err != nil {
		return nil, fmt.Errorf("card client: %w", err)
	}
	if c.vaulting, err = policy.NewLinkPolicy(policy.VaultRules()); err != nil {
		return nil, fmt.Errorf("card client: %w", err)
	}
	c.builder = &requestBuilder{clientID: cfg.ClientID, returnURL: cfg.ReturnURL, cancelURL: cfg.CancelURL}
	return c, nil
}

// SetDelegate registers the payment observer. nil unregisters it.
func (c *CardClient) SetDelegate(o reporting.PaymentObserver) {
	c.observers.SetPayment(o)
}

// SetVaultDelegate registers the vault observer. nil unregisters it.
func (c *CardClient) SetVaultDelegate(o reporting.VaultObserver) {
	c.observers.SetVault(o)
}

// ApproveOrder validates the card, attaches it to the order and runs a
// 3-D Secure challenge if one is required. The result goes to the payment
// observer. ctx carries trace data only; cancelling it does not stop the flow.
func (c *CardClient) ApproveOrder(ctx context.Context, request CardRequest) {
	tc := custom_context.NewTraceContext(ctx).Detached()
	go c.approveOrder(tc, request)
}

// Vault attaches the card to a vault setup token. The result goes to the
// vault observer. ctx carries trace data only.
func (c *CardClient) Vault(ctx context.Context, request VaultRequest) {
	tc := custom_context.NewTraceContext(ctx).Detached()
	go c.vault(tc, request)
}

func (c *CardClient) newReporter(tracker *analytics.Tracker, requestID string) *reporting.Reporter {
	return reporting.NewReporter(&c.observers, tracker, c.journal, c.log, c.config.ClientID, requestID)
}
