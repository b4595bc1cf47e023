package card

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/card-payments/internal/analytics"
	custom_context "github.com/yourorg/card-payments/internal/context"
	"github.com/yourorg/card-payments/internal/reporting"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

func (c *CardClient) approveOrder(tc custom_context.TraceContext, request CardRequest) {
	ctx, span := c.tracer.Start(tc.Context(), "CardClient.ApproveOrder",
		trace.WithAttributes(attribute.String("order_id", request.OrderID)))
	defer span.End()
	tc = custom_context.NewTraceContextWithIDs(ctx, tc.TraceID, span.SpanContext().SpanID().String())
	ctx = tc.Context()

	log := c.log.With(zap.String("order_id", request.OrderID), zap.String("trace_id", tc.TraceID))
	tracker := c.analytics.ForOrder(request.OrderID)
	reporter := c.newReporter(tracker, request.OrderID)

	confirmRequest, err := c.builder.confirmPaymentSource(request)
	if err != nil {
		log.Info("confirm-payment-source request rejected", zap.Error(err))
		span.SetStatus(codes.Error, "request construction")
		tracker.SendEvent(ctx, analytics.EventConfirmFailed)
		reporter.Report(ctx, reporting.Failure(err))
		return
	}

	tracker.SendEvent(ctx, analytics.EventStarted)

	result, err := c.api.ConfirmPaymentSource(ctx, confirmRequest)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm-payment-source")
		tracker.SendEvent(ctx, analytics.EventConfirmFailed)
		if _, ok := sdkerror.As(err); !ok {
			log.Warn("unclassified confirm-payment-source error", zap.Error(err))
			err = ErrUnknown
		}
		reporter.Report(ctx, reporting.Failure(err))
		return
	}

	match, err := c.approval.Classify(result.Links)
	if err != nil {
		log.Error("payer-action classification failed", zap.Error(err))
		tracker.SendEvent(ctx, analytics.EventConfirmFailed)
		reporter.Report(ctx, reporting.Failure(ErrUnknown))
		return
	}
	if match.Found {
		tracker.SendEvent(ctx, analytics.EventConfirmChallengeRequired)
		c.startThreeDSecureChallenge(ctx, tracker, reporter, match.Link.Href, result.ID)
		return
	}

	tracker.SendEvent(ctx, analytics.EventConfirmSucceeded)
	reporter.Report(ctx, reporting.Success(CardResult{OrderID: result.ID}))
}
