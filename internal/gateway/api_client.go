package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

const confirmPaymentSourceEndpoint = "confirm-payment-source"

// APIClient calls the REST orders API.
type APIClient struct {
	baseURL string
	t       *transport
}

var _ APIFetcher = (*APIClient)(nil)

// NewAPIClient creates an APIClient for cfg. A nil httpClient gets a default
// client bounded by cfg.Timeouts.RequestTimeout.
func NewAPIClient(cfg custom_context.CoreConfig, httpClient *http.Client, opts ...Option) *APIClient {
	cfg = cfg.WithDefaults()
	return &APIClient{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		t:       newTransport(cfg, httpClient, collectOptions(opts)),
	}
}

// apiErrorResponse is the error document returned by the orders API.
type apiErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func basicAuth(clientID string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"))
}

// ConfirmPaymentSource attaches the card in req.Body to the order.
func (c *APIClient) ConfirmPaymentSource(ctx context.Context, req ConfirmPaymentSourceRequest) (ConfirmationResult, error) {
	if req.OrderID == "" {
		return ConfirmationResult{}, sdkerror.New(CodeInvalidURLRequest, sdkerror.DomainAPIClient, "order id is required")
	}
	endpointURL := fmt.Sprintf("%s/v2/checkout/orders/%s/confirm-payment-source", c.baseURL, url.PathEscape(req.OrderID))
	requestID := uuid.NewString()

	resp, err := c.t.do(ctx, confirmPaymentSourceEndpoint, sdkerror.DomainAPIClient, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(req.Body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", basicAuth(req.ClientID))
		httpReq.Header.Set("PayPal-Request-Id", requestID)
		return httpReq, nil
	})
	if err != nil {
		return ConfirmationResult{}, err
	}

	if !resp.ok() {
		return ConfirmationResult{}, serverResponseError(resp)
	}

	var result ConfirmationResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return ConfirmationResult{}, sdkerror.Wrap(CodeJSONDecoding, sdkerror.DomainAPIClient, "failed to decode confirm-payment-source response", err)
	}
	c.t.log.Debug("confirm-payment-source completed",
		zap.String("order_id", result.ID),
		zap.String("status", result.Status),
		zap.Int("links", len(result.Links)),
	)
	return result, nil
}

func serverResponseError(resp rawResponse) error {
	description := fmt.Sprintf("request failed with HTTP %d", resp.status)
	var apiErr apiErrorResponse
	if err := json.Unmarshal(resp.body, &apiErr); err == nil {
		switch {
		case len(apiErr.Details) > 0 && apiErr.Details[0].Description != "":
			description = apiErr.Details[0].Description
		case apiErr.Message != "":
			description = apiErr.Message
		}
		if apiErr.DebugID != "" {
			description += " (debug id " + apiErr.DebugID + ")"
		}
	} else if id := resp.debugID(); id != "" {
		description += " (debug id " + id + ")"
	}
	return sdkerror.New(CodeServerResponse, sdkerror.DomainAPIClient, description)
}
