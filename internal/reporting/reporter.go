// Package reporting delivers terminal flow outcomes to observers and keeps
// the journal behind the retrospective summary.
package reporting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/card-payments/internal/analytics"
	"github.com/yourorg/card-payments/internal/sdkerror"
)

// Reporter is scoped to a single flow.
type Reporter struct {
	observers *ObserverSet
	tracker   *analytics.Tracker
	journal   *Journal
	log       *zap.Logger
	clientID  string
	requestID string
}

// NewReporter creates a Reporter. tracker and journal may be nil.
func NewReporter(observers *ObserverSet, tracker *analytics.Tracker, journal *Journal, log *zap.Logger, clientID, requestID string) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{
		observers: observers,
		tracker:   tracker,
		journal:   journal,
		log:       log,
		clientID:  clientID,
		requestID: requestID,
	}
}

// Report emits the terminal analytics event for outcome and then notifies
// the matching observer. An absent observer drops the outcome.
func (r *Reporter) Report(ctx context.Context, outcome Outcome) {
	r.record(outcome)

	switch outcome.Kind {
	case KindSuccess:
		r.tracker.SendEvent(ctx, analytics.EventSucceeded)
		r.log.Info("order approved", zap.String("order_id", outcome.Result.OrderID))
		if o := r.observers.Payment(); o != nil {
			o.DidSucceed(outcome.Result)
		}
	case KindFailure:
		r.tracker.SendEvent(ctx, analytics.EventFailed)
		r.log.Warn("order approval failed", zap.String("order_id", r.requestID), zap.Error(outcome.Err))
		if o := r.observers.Payment(); o != nil {
			o.DidFail(outcome.Err)
		}
	case KindCancellation:
		r.tracker.SendEvent(ctx, analytics.EventChallengeUserCanceled)
		r.log.Info("challenge canceled by payer", zap.String("order_id", r.requestID))
		if o := r.observers.Payment(); o != nil {
			o.DidCancel()
		}
	case KindVaultSuccess:
		r.log.Info("setup token updated",
			zap.String("setup_token_id", outcome.VaultResult.SetupTokenID),
			zap.String("status", outcome.VaultResult.Status))
		if o := r.observers.Vault(); o != nil {
			o.DidSucceedVault(outcome.VaultResult)
		}
	case KindVaultFailure:
		r.log.Warn("setup token update failed", zap.String("setup_token_id", r.requestID), zap.Error(outcome.Err))
		if o := r.observers.Vault(); o != nil {
			o.DidFailVault(outcome.Err)
		}
	default:
		r.log.Error("unknown outcome kind", zap.Stringer("kind", outcome.Kind))
	}
}

func (r *Reporter) record(outcome Outcome) {
	if r.journal == nil {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now(),
		RequestID: r.requestID,
		ClientID:  r.clientID,
		Status:    outcome.Kind.String(),
		Flow:      FlowApprove,
	}
	if outcome.Kind == KindVaultSuccess || outcome.Kind == KindVaultFailure {
		entry.Flow = FlowVault
	}
	if outcome.Err != nil {
		entry.ErrorMessage = outcome.Err.Error()
		entry.ErrorCode = "unclassified"
		if sdkErr, ok := sdkerror.As(outcome.Err); ok {
			entry.ErrorCode = sdkErr.CodeString()
		}
	}
	r.journal.Record(entry)
}
