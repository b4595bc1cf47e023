// Package gateway is the client side of the remote API: the REST
// confirm-payment-source call and the GraphQL endpoint used to update vault
// setup tokens. It owns serialization on the wire, transport retry on 429/5xx,
// per-endpoint circuit breaking and error mapping into *sdkerror.CoreSDKError.
package gateway

import (
	"context"
	"encoding/json"
)

// Error codes in sdkerror.DomainAPIClient.
const (
	CodeUnknown             = 0
	CodeDataEncoding        = 1
	CodeNoResponse          = 2
	CodeJSONDecoding        = 3
	CodeInvalidURLRequest   = 4
	CodeServerResponse      = 5
	CodeServiceUnavailable  = 6
	CodeGraphQLServerErrors = 7 // GraphQLClient only
)

// Link is a hypermedia link returned by the API.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// ConfirmationResult is the decoded confirm-payment-source response.
type ConfirmationResult struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Links  []Link `json:"links,omitempty"`
}

// TokenDetails is the vault setup token returned by UpdateVaultSetupToken.
type TokenDetails struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ConfirmPaymentSourceRequest is an already encoded call. Body is the JSON
// document built and validated by the card package.
type ConfirmPaymentSourceRequest struct {
	ClientID string
	OrderID  string
	Body     []byte
}

// GraphQLRequest is the JSON body posted to the GraphQL endpoint.
type GraphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one entry of the "errors" array. Path segments are field
// names (string) or list indexes (float64).
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLResponse keeps data undecoded so each caller can decode its own shape.
type GraphQLResponse struct {
	Data          json.RawMessage `json:"data"`
	Errors        []GraphQLError  `json:"errors,omitempty"`
	CorrelationID string          `json:"-"`
}

// HasData reports whether the response carries a non-null data object.
func (r *GraphQLResponse) HasData() bool {
	if r == nil {
		return false
	}
	trimmed := string(r.Data)
	return trimmed != "" && trimmed != "null"
}

// APIFetcher performs REST calls against the orders API.
type APIFetcher interface {
	ConfirmPaymentSource(ctx context.Context, req ConfirmPaymentSourceRequest) (ConfirmationResult, error)
}

// GraphQLCaller performs a named GraphQL operation.
type GraphQLCaller interface {
	CallGraphQL(ctx context.Context, req GraphQLRequest) (*GraphQLResponse, error)
}
