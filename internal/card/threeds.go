package card

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/card-payments/internal/analytics"
	"github.com/yourorg/card-payments/internal/challenge"
	"github.com/yourorg/card-payments/internal/reporting"
)

// challengeGrace lets the runner report its own timeout before the
// coordinator gives up on it.
const challengeGrace = 5 * time.Second

// startThreeDSecureChallenge hands rawURL to the runner. The outcome is
// reported for orderID, captured here before launch. A runner that has not
// completed within challengeDeadline is treated as a failed challenge.
func (c *CardClient) startThreeDSecureChallenge(
	ctx context.Context,
	tracker *analytics.Tracker,
	reporter *reporting.Reporter,
	rawURL string,
	orderID string,
) {
	challengeURL, err := parseChallengeURL(rawURL)
	if err != nil {
		c.log.Warn("malformed payer-action URL", zap.String("order_id", orderID), zap.Error(err))
		reporter.Report(ctx, reporting.Failure(threeDSecureURLError(err)))
		return
	}

	ctx, span := c.tracer.Start(ctx, "CardClient.ThreeDSecureChallenge", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("challenge_host", challengeURL.Host),
	))

	if o := c.observers.Payment(); o != nil {
		o.WillLaunchChallenge()
	}

	var once sync.Once
	done := make(chan struct{})
	complete := func(callbackURL *url.URL, err error) {
		once.Do(func() {
			close(done)
			defer span.End()
			if o := c.observers.Payment(); o != nil {
				o.DidFinishChallenge()
			}
			switch {
			case errors.Is(err, challenge.ErrCanceled):
				span.AddEvent("canceled")
				reporter.Report(ctx, reporting.Cancellation())
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, "challenge failed")
				reporter.Report(ctx, reporting.Failure(threeDSecureError(err)))
			default:
				reporter.Report(ctx, reporting.Success(CardResult{OrderID: orderID, DeepLinkURL: callbackURL}))
			}
		})
	}

	if deadline := c.challengeDeadline; deadline > 0 {
		go func() {
			timer := time.NewTimer(deadline)
			defer timer.Stop()
			select {
			case <-done:
			case <-timer.C:
				c.log.Warn("challenge runner did not complete", zap.String("order_id", orderID), zap.Duration("deadline", deadline))
				complete(nil, fmt.Errorf("challenge did not complete within %s", deadline))
			}
		}()
	}

	c.runner.Start(ctx, challengeURL,
		func(displayed bool) {
			if displayed {
				tracker.SendEvent(ctx, analytics.EventChallengePresentationSuccess)
				return
			}
			tracker.SendEvent(ctx, analytics.EventChallengePresentationFailure)
		},
		complete,
	)
}
