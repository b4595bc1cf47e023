package context

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment selects the default remote endpoints.
type Environment string

const (
	Sandbox Environment = "sandbox"
	Live    Environment = "live"
)

const (
	defaultReturnURL = "http://127.0.0.1:8765/card/success"
	defaultCancelURL = "http://127.0.0.1:8765/card/cancel"
)

// APIBaseURL returns the REST base URL for the environment.
func (e Environment) APIBaseURL() string {
	if e == Live {
		return "https://api.paypal.com"
	}
	return "https://api.sandbox.paypal.com"
}

// GraphQLURL returns the GraphQL endpoint for the environment.
func (e Environment) GraphQLURL() string {
	if e == Live {
		return "https://www.paypal.com/graphql"
	}
	return "https://www.sandbox.paypal.com/graphql"
}

// TimeoutConfig bounds the remote calls. Timeouts live in the transport only.
type TimeoutConfig struct {
	RequestTimeout   time.Duration `yaml:"request_timeout"`   // http.Client timeout per attempt
	ChallengeTimeout time.Duration `yaml:"challenge_timeout"` // loopback runner wait for the payer's redirect
}

// RetryPolicy stores the transport retry rules for 429 and 5xx responses.
// MaxAttempts of 1 means no retry.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// CircuitBreakerConfig configures the per-endpoint breaker in the gateway.
type CircuitBreakerConfig struct {
	FailureThreshold         int           `yaml:"failure_threshold"`
	ResetTimeout             time.Duration `yaml:"reset_timeout"`
	HalfOpenSuccessThreshold int           `yaml:"half_open_success_threshold"`
}

// CoreConfig holds everything the card client needs to reach the remote API.
type CoreConfig struct {
	ClientID       string               `yaml:"client_id"`
	Environment    Environment          `yaml:"environment"`
	APIBaseURL     string               `yaml:"api_base_url"`  // overrides Environment default
	GraphQLURL     string               `yaml:"graphql_url"`   // overrides Environment default
	ReturnURL      string               `yaml:"return_url"`    // 3DS redirect target on completion
	CancelURL      string               `yaml:"cancel_url"`    // 3DS redirect target on cancel
	DisableGraphQL bool                 `yaml:"disable_graphql"`
	Timeouts       TimeoutConfig        `yaml:"timeouts"`
	Retry          RetryPolicy          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// WithDefaults fills unset fields from the environment defaults.
func (c CoreConfig) WithDefaults() CoreConfig {
	if c.Environment == "" {
		c.Environment = Sandbox
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = c.Environment.APIBaseURL()
	}
	if c.GraphQLURL == "" {
		c.GraphQLURL = c.Environment.GraphQLURL()
	}
	if c.ReturnURL == "" {
		c.ReturnURL = defaultReturnURL
	}
	if c.CancelURL == "" {
		c.CancelURL = defaultCancelURL
	}
	if c.Timeouts.RequestTimeout <= 0 {
		c.Timeouts.RequestTimeout = 10 * time.Second
	}
	if c.Timeouts.ChallengeTimeout <= 0 {
		c.Timeouts.ChallengeTimeout = 10 * time.Minute
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.Delay <= 0 {
		c.Retry.Delay = 500 * time.Millisecond
	}
	return c
}

// Validate checks the fields a client cannot work without.
func (c CoreConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("config: client_id is required")
	}
	switch c.Environment {
	case Sandbox, Live, "":
	default:
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}
	for name, raw := range map[string]string{
		"api_base_url": c.APIBaseURL,
		"graphql_url":  c.GraphQLURL,
		"return_url":   c.ReturnURL,
		"cancel_url":   c.CancelURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: %s %q is not an absolute URL", name, raw)
		}
	}
	return nil
}

// LoadConfig reads a YAML config file, applies CARDPAY_* environment
// overrides and defaults, and validates the result.
func LoadConfig(path string) (CoreConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return CoreConfig{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg CoreConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return CoreConfig{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	cfg = ApplyEnv(cfg).WithDefaults()
	if err := cfg.Validate(); err != nil {
		return CoreConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CARDPAY_* environment variables.
func ApplyEnv(cfg CoreConfig) CoreConfig {
	cfg.ClientID = getenv("CARDPAY_CLIENT_ID", cfg.ClientID)
	cfg.Environment = Environment(getenv("CARDPAY_ENVIRONMENT", string(cfg.Environment)))
	cfg.APIBaseURL = getenv("CARDPAY_API_BASE_URL", cfg.APIBaseURL)
	cfg.GraphQLURL = getenv("CARDPAY_GRAPHQL_URL", cfg.GraphQLURL)
	cfg.ReturnURL = getenv("CARDPAY_RETURN_URL", cfg.ReturnURL)
	cfg.CancelURL = getenv("CARDPAY_CANCEL_URL", cfg.CancelURL)
	cfg.Retry.MaxAttempts = getenvInt("CARDPAY_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	if v := os.Getenv("CARDPAY_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeouts.RequestTimeout = d
		}
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
