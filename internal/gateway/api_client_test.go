package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/gateway/circuitbreaker"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

func testConfig(baseURL string) custom_context.CoreConfig {
	return custom_context.CoreConfig{
		ClientID:   "client-abc",
		APIBaseURL: baseURL,
		GraphQLURL: baseURL + "/graphql",
		Retry:      custom_context.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond},
	}
}

func TestNewAPIClient_Defaults(t *testing.T) {
	c := NewAPIClient(custom_context.CoreConfig{ClientID: "c"}, nil)
	require.NotNil(t, c)
	assert.Equal(t, "https://api.sandbox.paypal.com", c.baseURL)
	assert.NotNil(t, c.t.httpClient)
	assert.Equal(t, 10*time.Second, c.t.httpClient.Timeout)
}

func TestAPIClient_ConfirmPaymentSource_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders/O1/confirm-payment-source", r.URL.Path)
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("client-abc:")), r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("PayPal-Request-Id"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"payment_source":{}}`, string(body))

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "O1",
			"status": "PAYER_ACTION_REQUIRED",
			"links": []map[string]string{
				{"href": "https://3ds.example/x", "rel": "payer-action", "method": "GET"},
			},
		})
	}))
	defer server.Close()

	c := NewAPIClient(testConfig(server.URL), server.Client(), WithLogger(zaptest.NewLogger(t)))
	result, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{
		ClientID: "client-abc", OrderID: "O1", Body: []byte(`{"payment_source":{}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "O1", result.ID)
	assert.Equal(t, "PAYER_ACTION_REQUIRED", result.Status)
	require.Len(t, result.Links, 1)
	assert.Equal(t, Link{Href: "https://3ds.example/x", Rel: "payer-action", Method: "GET"}, result.Links[0])
}

func TestAPIClient_ConfirmPaymentSource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed.","debug_id":"dbg1","details":[{"issue":"CARD_EXPIRED","description":"The card is expired."}]}`))
	}))
	defer server.Close()

	c := NewAPIClient(testConfig(server.URL), server.Client())
	_, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	require.Error(t, err)

	sdkErr, ok := sdkerror.As(err)
	require.True(t, ok)
	assert.Equal(t, sdkerror.DomainAPIClient, sdkErr.Domain)
	assert.Equal(t, CodeServerResponse, sdkErr.Code)
	assert.Equal(t, "The card is expired. (debug id dbg1)", sdkErr.ErrorDescription)
}

func TestAPIClient_ConfirmPaymentSource_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := NewAPIClient(testConfig(server.URL), server.Client())
	_, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	sdkErr, ok := sdkerror.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeJSONDecoding, sdkErr.Code)
}

func TestAPIClient_ConfirmPaymentSource_MissingOrderID(t *testing.T) {
	c := NewAPIClient(testConfig("http://127.0.0.1:1"), nil)
	_, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{Body: []byte(`{}`)})
	sdkErr, ok := sdkerror.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidURLRequest, sdkErr.Code)
}

func TestAPIClient_RetriesServerErrorsWithStableRequestID(t *testing.T) {
	var attempts int32
	requestIDs := make(chan string, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs <- r.Header.Get("PayPal-Request-Id")
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"O1","status":"APPROVED"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retry.MaxAttempts = 3
	c := NewAPIClient(cfg, server.Client())

	result, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", result.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	first := <-requestIDs
	assert.Equal(t, first, <-requestIDs, "idempotency key must be stable across retries")
	assert.Equal(t, first, <-requestIDs)
}

func TestAPIClient_ExhaustedRetriesReportServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retry.MaxAttempts = 2
	c := NewAPIClient(cfg, server.Client())

	_, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	sdkErr, ok := sdkerror.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeServerResponse, sdkErr.Code)
	assert.Contains(t, sdkErr.ErrorDescription, "HTTP 500")
}

func TestAPIClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c := NewAPIClient(testConfig(baseURL), &http.Client{Timeout: time.Second})
	_, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	sdkErr, ok := sdkerror.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeNoResponse, sdkErr.Code)
	assert.NotNil(t, sdkErr.Unwrap())
}

func TestAPIClient_CircuitOpenFailsFast(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1, ResetTimeout: time.Minute})
	c := NewAPIClient(testConfig(server.URL), server.Client(), WithCircuitBreaker(cb))

	_, err := c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	require.Error(t, err)
	state, _ := cb.GetEndpointStatus(confirmPaymentSourceEndpoint)
	assert.Equal(t, circuitbreaker.StateOpen, state)

	_, err = c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	sdkErr, ok := sdkerror.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeServiceUnavailable, sdkErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "open circuit must not reach the server")
}

func TestAPIClient_ObservesRequestDuration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"O1"}`))
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	c := NewAPIClient(testConfig(server.URL), server.Client(), WithMetrics(metrics))
	_, err = c.ConfirmPaymentSource(context.Background(), ConfirmPaymentSourceRequest{OrderID: "O1", Body: []byte(`{}`)})
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RequestDuration))
	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice on the same registry should fail")
}
