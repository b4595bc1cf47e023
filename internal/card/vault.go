package card

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/card-payments/internal/analytics"
	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/gateway"
	"github.com/yourorg/card-payments/internal/reporting"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

func (c *CardClient) vault(tc custom_context.TraceContext, request VaultRequest) {
	ctx, span := c.tracer.Start(tc.Context(), "CardClient.Vault",
		trace.WithAttributes(attribute.String("setup_token_id", request.SetupTokenID)))
	defer span.End()
	tc = custom_context.NewTraceContextWithIDs(ctx, tc.TraceID, span.SpanContext().SpanID().String())
	ctx = tc.Context()

	log := c.log.With(zap.String("setup_token_id", request.SetupTokenID), zap.String("trace_id", tc.TraceID))
	tracker := c.analytics.ForSetupToken(request.SetupTokenID)
	reporter := c.newReporter(tracker, request.SetupTokenID)

	if c.graphQL == nil {
		log.Warn("vault requested without a GraphQL client")
		span.SetStatus(codes.Error, "graphql unavailable")
		reporter.Report(ctx, reporting.VaultFailure(ErrUnknown))
		return
	}

	details, err := c.updateSetupToken(tc, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update setup token")
		if _, ok := sdkerror.As(err); !ok {
			log.Warn("unclassified vault error", zap.Error(err))
			err = ErrVaultToken
		}
		reporter.Report(ctx, reporting.VaultFailure(err))
		return
	}
	if details == nil {
		span.SetStatus(codes.Error, "no data")
		reporter.Report(ctx, reporting.VaultFailure(ErrNoVaultTokenData))
		return
	}

	match, err := c.vaulting.Classify(details.Links)
	if err != nil {
		log.Error("vault link classification failed", zap.Error(err))
		reporter.Report(ctx, reporting.VaultFailure(ErrVaultToken))
		return
	}
	if match.Found {
		// 3DS contingency for vaulting has no completion path: no outcome is reported.
		log.Info("vault 3DS contingency left unresolved",
			zap.String("rule", match.RuleID),
			zap.String("url", match.Link.Href))
		span.AddEvent("contingency-unresolved", trace.WithAttributes(attribute.String("url", match.Link.Href)))
		tracker.SendEvent(ctx, analytics.EventVaultContingencyUnresolved)
		return
	}

	reporter.Report(ctx, reporting.VaultSuccess(CardVaultResult{SetupTokenID: details.ID, Status: details.Status}))
}

// updateSetupToken returns nil details when the response carries no data.
func (c *CardClient) updateSetupToken(tc custom_context.TraceContext, request VaultRequest) (*gateway.TokenDetails, error) {
	gqlRequest, err := c.builder.updateSetupToken(request)
	if err != nil {
		return nil, err
	}
	response, err := c.graphQL.CallGraphQL(tc.Context(), gqlRequest)
	if err != nil {
		return nil, err
	}
	if !response.HasData() {
		return nil, nil
	}
	var data updateSetupTokenData
	if err := json.Unmarshal(response.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", updateSetupTokenOperation, err)
	}
	return data.UpdateVaultSetupToken, nil
}
