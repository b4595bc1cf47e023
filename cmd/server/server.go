package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/yourorg/card-payments/internal/analytics"
	"github.com/yourorg/card-payments/internal/card"
	"github.com/yourorg/card-payments/internal/challenge"
	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/gateway"
	"github.com/yourorg/card-payments/internal/gateway/circuitbreaker"
	"github.com/yourorg/card-payments/internal/reporting"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

const clientIDHeader = "X-Client-ID"

type serverConfig struct {
	Configs         custom_context.ConfigRepository
	DefaultClientID string
	Registry        *prometheus.Registry
	Log             *zap.Logger
	WaitTimeout     time.Duration
	Headless        bool
	// ClientOptions are appended to the options of every per-request client.
	ClientOptions []card.Option
}

type server struct {
	configs         custom_context.ConfigRepository
	defaultClientID string
	registry        *prometheus.Registry
	log             *zap.Logger
	waitTimeout     time.Duration
	opener          challenge.BrowserOpener
	clientOptions   []card.Option

	analyticsSink  *analytics.PrometheusSink
	gatewayMetrics *gateway.Metrics
	journal        *reporting.Journal
	retrospective  *reporting.RetrospectiveReporter

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
	runners  map[string]*challenge.LoopbackRunner
}

func newServer(cfg serverConfig) (*server, error) {
	if cfg.Configs == nil {
		return nil, errors.New("config repository is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 2 * time.Minute
	}
	sink, err := analytics.NewPrometheusSink(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("analytics metrics: %w", err)
	}
	gwMetrics, err := gateway.NewMetrics(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("gateway metrics: %w", err)
	}
	s := &server{
		configs:         cfg.Configs,
		defaultClientID: cfg.DefaultClientID,
		registry:        cfg.Registry,
		log:             cfg.Log,
		waitTimeout:     cfg.WaitTimeout,
		opener:          challenge.SystemBrowser,
		clientOptions:   cfg.ClientOptions,
		analyticsSink:   sink,
		gatewayMetrics:  gwMetrics,
		journal:         reporting.NewJournal(),
		retrospective:   reporting.NewRetrospectiveReporter(),
		breakers:        make(map[string]*circuitbreaker.CircuitBreaker),
		runners:         make(map[string]*challenge.LoopbackRunner),
	}
	if cfg.Headless {
		s.opener = func(u *url.URL) error {
			s.log.Info("complete the 3DS challenge in a browser", zap.String("url", u.String()))
			return nil
		}
	}
	return s, nil
}

// breakerFor shares one breaker per client across requests.
func (s *server) breakerFor(cfg custom_context.CoreConfig) *circuitbreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[cfg.ClientID]
	if !ok {
		cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold:         cfg.CircuitBreaker.FailureThreshold,
			ResetTimeout:             cfg.CircuitBreaker.ResetTimeout,
			HalfOpenSuccessThreshold: cfg.CircuitBreaker.HalfOpenSuccessThreshold,
		})
		s.breakers[cfg.ClientID] = cb
	}
	return cb
}

// runnerFor shares one loopback runner per return/cancel URL pair so
// challenges on the same listener queue instead of failing to bind.
func (s *server) runnerFor(cfg custom_context.CoreConfig) (*challenge.LoopbackRunner, error) {
	key := cfg.ReturnURL + " " + cfg.CancelURL
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runners[key]; ok {
		return r, nil
	}
	r, err := challenge.NewLoopbackRunner(cfg.ReturnURL, cfg.CancelURL, s.opener, s.log)
	if err != nil {
		return nil, err
	}
	r.Timeout = cfg.Timeouts.ChallengeTimeout
	s.runners[key] = r
	return r, nil
}

// newClient builds a CardClient for one request so its observer is private
// to that request. Breakers and metrics are shared.
func (s *server) newClient(c *gin.Context) (*card.CardClient, error) {
	clientID := c.GetHeader(clientIDHeader)
	if clientID == "" {
		clientID = s.defaultClientID
	}
	cfg, err := s.configs.Get(clientID)
	if err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	gwOpts := []gateway.Option{
		gateway.WithCircuitBreaker(s.breakerFor(cfg)),
		gateway.WithMetrics(s.gatewayMetrics),
		gateway.WithLogger(s.log),
	}
	runner, err := s.runnerFor(cfg)
	if err != nil {
		return nil, err
	}

	opts := []card.Option{
		card.WithAPIClient(gateway.NewAPIClient(cfg, nil, gwOpts...)),
		card.WithChallengeRunner(runner),
		card.WithAnalytics(analytics.NewService(cfg, s.log, s.analyticsSink)),
		card.WithJournal(s.journal),
		card.WithLogger(s.log),
	}
	if !cfg.DisableGraphQL {
		opts = append(opts, card.WithGraphQLClient(gateway.NewGraphQLClient(cfg, nil, gwOpts...)))
	}
	return card.NewCardClient(cfg, append(opts, s.clientOptions...)...)
}

type approveBody struct {
	Card card.Card `json:"card"`
	SCA  card.SCA  `json:"sca"`
}

type vaultBody struct {
	Card card.Card `json:"card"`
}

type outcomeResponse struct {
	Status       string `json:"status"`
	OrderID      string `json:"order_id,omitempty"`
	SetupTokenID string `json:"setup_token_id,omitempty"`
	TokenStatus  string `json:"token_status,omitempty"`
	DeepLinkURL  string `json:"deep_link_url,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

func (s *server) approveOrderHandler(c *gin.Context) {
	var body approveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	client, err := s.newClient(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	obs := newChannelObserver()
	client.SetDelegate(obs)
	client.ApproveOrder(c.Request.Context(), card.CardRequest{
		OrderID: c.Param("orderID"),
		Card:    body.Card,
		SCA:     body.SCA,
	})
	s.respond(c, obs, outcomeResponse{OrderID: c.Param("orderID")})
}

func (s *server) vaultHandler(c *gin.Context) {
	var body vaultBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	client, err := s.newClient(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	obs := newChannelObserver()
	client.SetVaultDelegate(obs)
	client.Vault(c.Request.Context(), card.VaultRequest{
		SetupTokenID: c.Param("tokenID"),
		Card:         body.Card,
	})
	s.respond(c, obs, outcomeResponse{SetupTokenID: c.Param("tokenID")})
}

// respond waits for the flow's outcome. A flow that reports nothing in time
// (the vault contingency, or a challenge still open) answers 202 pending.
func (s *server) respond(c *gin.Context, obs *channelObserver, resp outcomeResponse) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.waitTimeout)
	defer cancel()

	select {
	case outcome := <-obs.outcomes:
		status := http.StatusOK
		resp.Status = outcome.Kind.String()
		switch outcome.Kind {
		case reporting.KindSuccess:
			resp.OrderID = outcome.Result.OrderID
			if outcome.Result.DeepLinkURL != nil {
				resp.DeepLinkURL = outcome.Result.DeepLinkURL.String()
			}
		case reporting.KindVaultSuccess:
			resp.SetupTokenID = outcome.VaultResult.SetupTokenID
			resp.TokenStatus = outcome.VaultResult.Status
		case reporting.KindFailure, reporting.KindVaultFailure:
			status = http.StatusBadGateway
			resp.Error = outcome.Err.Error()
			if sdkErr, ok := sdkerror.As(outcome.Err); ok {
				resp.ErrorCode = sdkErr.CodeString()
			}
			if errors.Is(outcome.Err, card.ErrEncoding) {
				status = http.StatusBadRequest
			}
		}
		c.JSON(status, resp)
	case <-ctx.Done():
		resp.Status = "PENDING"
		c.JSON(http.StatusAccepted, resp)
	}
}

func (s *server) retrospectiveHandler(c *gin.Context) {
	report, err := s.retrospective.GenerateRetrospective(s.journal.Entries())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *server) metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func otelginMiddleware() gin.HandlerFunc {
	return otelgin.Middleware("card-payments")
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// channelObserver forwards the first terminal outcome of one flow.
type channelObserver struct {
	outcomes chan reporting.Outcome
}

func newChannelObserver() *channelObserver {
	return &channelObserver{outcomes: make(chan reporting.Outcome, 1)}
}

func (o *channelObserver) send(outcome reporting.Outcome) {
	select {
	case o.outcomes <- outcome:
	default:
	}
}

func (o *channelObserver) WillLaunchChallenge() {}
func (o *channelObserver) DidFinishChallenge()  {}

func (o *channelObserver) DidSucceed(r reporting.CardResult) { o.send(reporting.Success(r)) }
func (o *channelObserver) DidFail(err error)                 { o.send(reporting.Failure(err)) }
func (o *channelObserver) DidCancel()                        { o.send(reporting.Cancellation()) }

func (o *channelObserver) DidSucceedVault(r reporting.CardVaultResult) {
	o.send(reporting.VaultSuccess(r))
}
func (o *channelObserver) DidFailVault(err error) { o.send(reporting.VaultFailure(err)) }
