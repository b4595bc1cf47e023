// Package mock provides function-field fakes of the gateway interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/yourorg/card-payments/internal/gateway"
)

// MockAPIClient is a mock implementation of gateway.APIFetcher.
type MockAPIClient struct {
	ConfirmFunc func(ctx context.Context, req gateway.ConfirmPaymentSourceRequest) (gateway.ConfirmationResult, error)

	mu    sync.Mutex
	calls []gateway.ConfirmPaymentSourceRequest
}

// ConfirmPaymentSource calls ConfirmFunc if defined, otherwise returns a
// result for the requested order with no links.
func (m *MockAPIClient) ConfirmPaymentSource(ctx context.Context, req gateway.ConfirmPaymentSourceRequest) (gateway.ConfirmationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, req)
	}
	return gateway.ConfirmationResult{ID: req.OrderID, Status: "APPROVED"}, nil
}

// Calls returns the requests received so far.
func (m *MockAPIClient) Calls() []gateway.ConfirmPaymentSourceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.ConfirmPaymentSourceRequest(nil), m.calls...)
}

// MockGraphQLClient is a mock implementation of gateway.GraphQLCaller.
type MockGraphQLClient struct {
	CallFunc func(ctx context.Context, req gateway.GraphQLRequest) (*gateway.GraphQLResponse, error)

	mu    sync.Mutex
	calls []gateway.GraphQLRequest
}

// CallGraphQL calls CallFunc if defined, otherwise returns an empty response.
func (m *MockGraphQLClient) CallGraphQL(ctx context.Context, req gateway.GraphQLRequest) (*gateway.GraphQLResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CallFunc != nil {
		return m.CallFunc(ctx, req)
	}
	return &gateway.GraphQLResponse{}, nil
}

// Calls returns the requests received so far.
func (m *MockGraphQLClient) Calls() []gateway.GraphQLRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.GraphQLRequest(nil), m.calls...)
}
