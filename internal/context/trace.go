package context

import (
	stdcontext "context"

	"github.com/google/uuid"
)

// TraceContext carries only cross-cutting concerns needed for observability
// of a single approve or vault flow.
type TraceContext struct {
	TraceID string            // Globally unique ID for logs and spans
	SpanID  string            // Current span identifier
	Baggage map[string]string // Optional key-value flags (e.g., order_id)
	stdCtx  stdcontext.Context
}

// NewTraceContext creates a TraceContext with a unique TraceID and an initial SpanID.
// A nil parent falls back to context.Background().
func NewTraceContext(parent stdcontext.Context) TraceContext {
	if parent == nil {
		parent = stdcontext.Background()
	}
	return TraceContext{
		TraceID: uuid.NewString(),
		SpanID:  uuid.NewString(),
		Baggage: make(map[string]string),
		stdCtx:  parent,
	}
}

// NewTraceContextWithIDs is used when the IDs come from an existing span.
func NewTraceContextWithIDs(parent stdcontext.Context, traceID, spanID string) TraceContext {
	tc := NewTraceContext(parent)
	if traceID != "" {
		tc.TraceID = traceID
	}
	if spanID != "" {
		tc.SpanID = spanID
	}
	return tc
}

// NewSpan generates a new SpanID for a child operation within the same trace.
func (tc *TraceContext) NewSpan() string {
	tc.SpanID = uuid.NewString()
	return tc.SpanID
}

// Context returns the standard context the flow runs under.
func (tc TraceContext) Context() stdcontext.Context {
	if tc.stdCtx == nil {
		return stdcontext.Background()
	}
	return tc.stdCtx
}

// WithContext returns a copy bound to ctx, keeping IDs and baggage.
func (tc TraceContext) WithContext(ctx stdcontext.Context) TraceContext {
	tc.stdCtx = ctx
	return tc
}

// Detached returns a copy whose context keeps the parent's values but is never
// cancelled. Approve and vault flows run detached: the caller cannot abort an
// in-flight remote call through the context it passed in.
func (tc TraceContext) Detached() TraceContext {
	tc.stdCtx = stdcontext.WithoutCancel(tc.Context())
	return tc
}
