package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

// GraphQLClient posts named operations to the GraphQL endpoint.
type GraphQLClient struct {
	url string
	t   *transport
}

var _ GraphQLCaller = (*GraphQLClient)(nil)

// NewGraphQLClient creates a GraphQLClient for cfg.
func NewGraphQLClient(cfg custom_context.CoreConfig, httpClient *http.Client, opts ...Option) *GraphQLClient {
	cfg = cfg.WithDefaults()
	return &GraphQLClient{
		url: cfg.GraphQLURL,
		t:   newTransport(cfg, httpClient, collectOptions(opts)),
	}
}

// CallGraphQL posts req and returns the undecoded data. A response carrying
// only errors is returned as a *sdkerror.CoreSDKError; a response without
// data and without errors is returned as-is for the caller to interpret.
func (c *GraphQLClient) CallGraphQL(ctx context.Context, req GraphQLRequest) (*GraphQLResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, sdkerror.Wrap(CodeDataEncoding, sdkerror.DomainGraphQLClient, "failed to encode graphql request", err)
	}
	requestID := uuid.NewString()

	resp, err := c.t.do(ctx, "graphql:"+req.OperationName, sdkerror.DomainGraphQLClient, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("PayPal-Request-Id", requestID)
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, sdkerror.New(CodeServerResponse, sdkerror.DomainGraphQLClient,
			fmt.Sprintf("graphql %s failed with HTTP %d", req.OperationName, resp.status))
	}

	var out GraphQLResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, sdkerror.Wrap(CodeJSONDecoding, sdkerror.DomainGraphQLClient, "failed to decode graphql response", err)
	}
	out.CorrelationID = resp.debugID()

	if len(out.Errors) > 0 && !out.HasData() {
		messages := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			messages = append(messages, e.Message)
		}
		return nil, sdkerror.New(CodeGraphQLServerErrors, sdkerror.DomainGraphQLClient, strings.Join(messages, "; "))
	}
	return &out, nil
}
