package circuitbreaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/card-payments/internal/gateway/circuitbreaker"
)

const (
	confirmEndpoint = "confirm-payment-source"
	graphqlEndpoint = "graphql:UpdateVaultSetupToken"
)

func TestNewCircuitBreaker(t *testing.T) {
	t.Run("Default config", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
		require.NotNil(t, cb)
		assert.True(t, cb.AllowRequest(confirmEndpoint), "Should allow by default")
		cb.RecordFailure(confirmEndpoint)
		cb.RecordFailure(confirmEndpoint)
		assert.True(t, cb.AllowRequest(confirmEndpoint), "Should still be closed after 2 failures")
		cb.RecordFailure(confirmEndpoint)
		assert.False(t, cb.AllowRequest(confirmEndpoint), "Should be open after 3 failures with default config")
	})

	t.Run("Custom config", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
		cb.RecordFailure(confirmEndpoint)
		assert.True(t, cb.AllowRequest(confirmEndpoint), "Should still be closed after 1 failure")
		cb.RecordFailure(confirmEndpoint)
		assert.False(t, cb.AllowRequest(confirmEndpoint), "Should be open after 2 failures with custom config")
	})
}

func TestCircuitBreaker_StateTransitions(t *testing.T) {
	cfg := circuitbreaker.Config{FailureThreshold: 2, ResetTimeout: 50 * time.Millisecond}

	t.Run("Closed_To_Open", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(cfg)
		state, failures := cb.GetEndpointStatus(confirmEndpoint)
		assert.Equal(t, circuitbreaker.StateClosed, state)
		assert.Equal(t, 0, failures)

		cb.RecordFailure(confirmEndpoint)
		state, failures = cb.GetEndpointStatus(confirmEndpoint)
		assert.Equal(t, circuitbreaker.StateClosed, state)
		assert.Equal(t, 1, failures)

		cb.RecordFailure(confirmEndpoint)
		state, failures = cb.GetEndpointStatus(confirmEndpoint)
		assert.Equal(t, circuitbreaker.StateOpen, state)
		assert.Equal(t, cfg.FailureThreshold, failures)
		assert.False(t, cb.AllowRequest(confirmEndpoint))
	})

	t.Run("Open_To_HalfOpen", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(cfg)
		cb.RecordFailure(confirmEndpoint)
		cb.RecordFailure(confirmEndpoint)
		require.False(t, cb.AllowRequest(confirmEndpoint), "Pre-condition: Should be Open")

		time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)

		assert.True(t, cb.AllowRequest(confirmEndpoint), "Should allow request (transition to HalfOpen)")
		state, failures := cb.GetEndpointStatus(confirmEndpoint)
		assert.Equal(t, circuitbreaker.StateHalfOpen, state)
		assert.Equal(t, 0, failures)
	})

	t.Run("HalfOpen_To_Closed_OnSuccess", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(cfg)
		cb.RecordFailure(confirmEndpoint)
		cb.RecordFailure(confirmEndpoint)
		time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)
		require.True(t, cb.AllowRequest(confirmEndpoint))

		cb.RecordSuccess(confirmEndpoint)
		state, failures := cb.GetEndpointStatus(confirmEndpoint)
		assert.Equal(t, circuitbreaker.StateClosed, state)
		assert.Equal(t, 0, failures)
	})

	t.Run("HalfOpen_To_Open_OnFailure", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(cfg)
		cb.RecordFailure(confirmEndpoint)
		cb.RecordFailure(confirmEndpoint)
		time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)
		require.True(t, cb.AllowRequest(confirmEndpoint))

		cb.RecordFailure(confirmEndpoint)
		state, failures := cb.GetEndpointStatus(confirmEndpoint)
		assert.Equal(t, circuitbreaker.StateOpen, state)
		assert.Equal(t, cfg.FailureThreshold, failures)
		assert.False(t, cb.AllowRequest(confirmEndpoint))
	})
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 3})
	cb.RecordFailure(confirmEndpoint)
	cb.RecordFailure(confirmEndpoint)
	cb.RecordSuccess(confirmEndpoint)

	state, failures := cb.GetEndpointStatus(confirmEndpoint)
	assert.Equal(t, circuitbreaker.StateClosed, state)
	assert.Equal(t, 0, failures)
}

func TestCircuitBreaker_EndpointsAreIndependent(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1, ResetTimeout: time.Minute})

	cb.RecordFailure(confirmEndpoint)
	assert.False(t, cb.AllowRequest(confirmEndpoint))
	assert.True(t, cb.AllowRequest(graphqlEndpoint))

	cb.RecordFailure(confirmEndpoint) // already open, stays at threshold
	_, failures := cb.GetEndpointStatus(confirmEndpoint)
	assert.Equal(t, 1, failures)
}

func TestCircuitBreaker_State_String(t *testing.T) {
	assert.Equal(t, "Closed", circuitbreaker.StateClosed.String())
	assert.Equal(t, "Open", circuitbreaker.StateOpen.String())
	assert.Equal(t, "HalfOpen", circuitbreaker.StateHalfOpen.String())
	assert.Equal(t, "Unknown", circuitbreaker.State(99).String())
}
