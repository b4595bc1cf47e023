package challenge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type result struct {
	url *url.URL
	err error
}

// newTestRunner binds a real ephemeral listener and points the runner's URLs at it.
func newTestRunner(t *testing.T, open BrowserOpener) *LoopbackRunner {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	r, err := NewLoopbackRunner(base+"/card/success", base+"/card/cancel", open, zaptest.NewLogger(t))
	require.NoError(t, err)
	r.listen = func(string, string) (net.Listener, error) { return ln, nil }
	return r
}

// browserHitting simulates the payer's browser ending on path.
func browserHitting(t *testing.T, target func() string) BrowserOpener {
	return func(*url.URL) error {
		go func() {
			resp, err := http.Get(target())
			if err != nil {
				t.Errorf("callback request failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
}

func runAndWait(t *testing.T, r *LoopbackRunner, ctx context.Context) (bool, result) {
	t.Helper()
	challengeURL, _ := url.Parse("https://bank.example/3ds?token=abc")
	displayed := make(chan bool, 1)
	results := make(chan result, 2)
	r.Start(ctx, challengeURL, func(ok bool) { displayed <- ok }, func(u *url.URL, err error) {
		results <- result{u, err}
	})

	var shown bool
	select {
	case shown = <-displayed:
	case <-time.After(5 * time.Second):
		t.Fatal("display hook not called")
	}
	select {
	case res := <-results:
		select {
		case extra := <-results:
			t.Fatalf("completion delivered twice: %+v", extra)
		case <-time.After(100 * time.Millisecond):
		}
		return shown, res
	case <-time.After(5 * time.Second):
		t.Fatal("completion not delivered")
	}
	return false, result{}
}

func TestLoopbackRunner_ReturnPathCompletesWithCallbackURL(t *testing.T) {
	var r *LoopbackRunner
	r = newTestRunner(t, browserHitting(t, func() string {
		return r.ReturnURL.String() + "?state=ok&liability_shift=POSSIBLE"
	}))

	shown, res := runAndWait(t, r, context.Background())

	assert.True(t, shown)
	require.NoError(t, res.err)
	require.NotNil(t, res.url)
	assert.Equal(t, "/card/success", res.url.Path)
	assert.Equal(t, "POSSIBLE", res.url.Query().Get("liability_shift"))
	assert.Equal(t, r.ReturnURL.Host, res.url.Host)
}

func TestLoopbackRunner_CancelPathCompletesWithErrCanceled(t *testing.T) {
	var r *LoopbackRunner
	r = newTestRunner(t, browserHitting(t, func() string { return r.CancelURL.String() }))

	shown, res := runAndWait(t, r, context.Background())

	assert.True(t, shown)
	assert.Nil(t, res.url)
	assert.ErrorIs(t, res.err, ErrCanceled)
}

func TestLoopbackRunner_OpenFailureReportsNotDisplayed(t *testing.T) {
	r := newTestRunner(t, func(*url.URL) error { return errors.New("no browser") })

	shown, res := runAndWait(t, r, context.Background())

	assert.False(t, shown)
	require.Error(t, res.err)
	assert.NotErrorIs(t, res.err, ErrCanceled)
	assert.Contains(t, res.err.Error(), "no browser")
}

func TestLoopbackRunner_ListenFailure(t *testing.T) {
	r := newTestRunner(t, func(*url.URL) error { return nil })
	r.listen = func(string, string) (net.Listener, error) { return nil, errors.New("address in use") }

	shown, res := runAndWait(t, r, context.Background())

	assert.False(t, shown)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "address in use")
}

func TestLoopbackRunner_Timeout(t *testing.T) {
	r := newTestRunner(t, func(*url.URL) error { return nil })
	r.Timeout = 50 * time.Millisecond

	shown, res := runAndWait(t, r, context.Background())

	assert.True(t, shown)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "timed out")
}

func TestLoopbackRunner_CompletesOnceUnderRepeatedCallbacks(t *testing.T) {
	var r *LoopbackRunner
	r = newTestRunner(t, func(*url.URL) error {
		go func() {
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if resp, err := http.Get(r.ReturnURL.String()); err == nil {
						resp.Body.Close()
					}
				}()
			}
			wg.Wait()
		}()
		return nil
	})

	_, res := runAndWait(t, r, context.Background())
	assert.NoError(t, res.err)
}

func TestLoopbackRunner_ConcurrentChallengesShareTheListener(t *testing.T) {
	gin.SetMode(gin.TestMode)
	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + free.Addr().String()
	require.NoError(t, free.Close())

	opened := make(chan string, 2)
	r, err := NewLoopbackRunner(base+"/card/success", base+"/card/cancel", func(u *url.URL) error {
		opened <- u.Query().Get("token")
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	r.Timeout = 5 * time.Second

	results := map[string]chan result{"first": make(chan result, 1), "second": make(chan result, 1)}
	start := func(token string) {
		u, _ := url.Parse("https://bank.example/3ds?token=" + token)
		r.Start(context.Background(), u, func(bool) {}, func(cb *url.URL, err error) {
			results[token] <- result{cb, err}
		})
	}
	hit := func(target string) {
		resp, err := http.Get(target)
		require.NoError(t, err)
		resp.Body.Close()
	}

	go start("first")
	require.Equal(t, "first", <-opened)

	go start("second")
	select {
	case tok := <-opened:
		t.Fatalf("challenge %q opened while the listener was busy", tok)
	case <-time.After(100 * time.Millisecond):
	}

	hit(r.ReturnURL.String())
	first := <-results["first"]
	require.NoError(t, first.err)

	select {
	case tok := <-opened:
		assert.Equal(t, "second", tok)
	case <-time.After(5 * time.Second):
		t.Fatal("queued challenge never started")
	}
	hit(r.CancelURL.String())

	select {
	case second := <-results["second"]:
		assert.ErrorIs(t, second.err, ErrCanceled)
	case <-time.After(5 * time.Second):
		t.Fatal("queued challenge never completed")
	}
}

func TestLoopbackRunner_QueuedChallengeGivesUpAfterTimeout(t *testing.T) {
	r := newTestRunner(t, func(*url.URL) error { return nil })
	r.Timeout = 50 * time.Millisecond
	r.slotOnce.Do(func() { r.slot = make(chan struct{}, 1) })
	r.slot <- struct{}{}

	shown, res := runAndWait(t, r, context.Background())

	assert.False(t, shown)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "queued")
}

func TestNewLoopbackRunner_Validation(t *testing.T) {
	tests := []struct {
		name      string
		returnURL string
		cancelURL string
		wantErr   string
	}{
		{"host mismatch", "http://127.0.0.1:8765/ok", "http://127.0.0.1:9999/cancel", "must match"},
		{"same path", "http://127.0.0.1:8765/x", "http://127.0.0.1:8765/x", "share path"},
		{"no host", "/ok", "/cancel", "must match"},
		{"valid", "http://127.0.0.1:8765/ok", "http://127.0.0.1:8765/cancel", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoopbackRunner(tt.returnURL, tt.cancelURL, nil, nil)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
