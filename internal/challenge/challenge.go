// Package challenge presents a 3-D Secure challenge URL to the payer and
// reports how the redirect round trip ended.
package challenge

import (
	"context"
	"errors"
	"net/url"
)

// ErrCanceled is delivered to onComplete when the payer abandons the challenge.
var ErrCanceled = errors.New("challenge: canceled by payer")

// Runner launches a challenge session. onDisplay reports whether the
// challenge could be shown. onComplete receives the callback URL the
// session ended on, or an error; ErrCanceled marks payer cancellation.
// Implementations call onComplete at most once. The card client gives up on
// a session that has not completed within its challenge timeout plus a short
// grace period and ignores any later completion.
type Runner interface {
	Start(ctx context.Context, u *url.URL, onDisplay func(bool), onComplete func(*url.URL, error))
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, u *url.URL, onDisplay func(bool), onComplete func(*url.URL, error))

func (f RunnerFunc) Start(ctx context.Context, u *url.URL, onDisplay func(bool), onComplete func(*url.URL, error)) {
	f(ctx, u, onDisplay, onComplete)
}
