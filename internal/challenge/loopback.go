package challenge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BrowserOpener shows u to the payer. A non-nil error means it could not be displayed.
type BrowserOpener func(u *url.URL) error

// SystemBrowser opens u with the platform's default browser command.
func SystemBrowser(u *url.URL) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u.String())
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String())
	default:
		cmd = exec.Command("xdg-open", u.String())
	}
	return cmd.Start()
}

// LoopbackRunner serves the return and cancel URLs on a local listener and
// waits for the payer's browser to be redirected to one of them. The listener
// is bound to a fixed host:port, so concurrent Starts on one runner queue and
// run one challenge at a time.
type LoopbackRunner struct {
	ReturnURL *url.URL
	CancelURL *url.URL
	Open      BrowserOpener
	// Timeout bounds the wait for a redirect. Zero waits until ctx is done.
	Timeout time.Duration
	Log     *zap.Logger

	// listen is swapped in tests.
	listen func(network, addr string) (net.Listener, error)

	slotOnce sync.Once
	slot     chan struct{}
}

// NewLoopbackRunner builds a runner for the given return and cancel URLs.
// Both must share the same host:port.
func NewLoopbackRunner(returnURL, cancelURL string, open BrowserOpener, log *zap.Logger) (*LoopbackRunner, error) {
	ret, err := url.Parse(returnURL)
	if err != nil {
		return nil, fmt.Errorf("invalid return URL: %w", err)
	}
	cancel, err := url.Parse(cancelURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cancel URL: %w", err)
	}
	if ret.Host == "" || ret.Host != cancel.Host {
		return nil, fmt.Errorf("return URL host %q and cancel URL host %q must match", ret.Host, cancel.Host)
	}
	if ret.Path == cancel.Path {
		return nil, fmt.Errorf("return and cancel URLs share path %q", ret.Path)
	}
	if open == nil {
		open = SystemBrowser
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LoopbackRunner{ReturnURL: ret, CancelURL: cancel, Open: open, Log: log, listen: net.Listen}, nil
}

func (r *LoopbackRunner) acquire(ctx context.Context, timeout <-chan time.Time) error {
	r.slotOnce.Do(func() { r.slot = make(chan struct{}, 1) })
	select {
	case r.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("challenge aborted while queued: %w", ctx.Err())
	case <-timeout:
		return fmt.Errorf("challenge queued for more than %s", r.Timeout)
	}
}

func (r *LoopbackRunner) release() { <-r.slot }

// Start implements Runner. It returns once the listener is up and the
// browser has been asked to open u; completion is delivered asynchronously.
// While another challenge holds the listener, Start blocks until it is
// released. Timeout covers the queueing and the redirect wait together.
func (r *LoopbackRunner) Start(ctx context.Context, u *url.URL, onDisplay func(bool), onComplete func(*url.URL, error)) {
	var timeout <-chan time.Time
	stopTimer := func() {}
	if r.Timeout > 0 {
		timer := time.NewTimer(r.Timeout)
		timeout = timer.C
		stopTimer = func() { timer.Stop() }
	}

	if err := r.acquire(ctx, timeout); err != nil {
		stopTimer()
		onDisplay(false)
		onComplete(nil, err)
		return
	}

	done := make(chan struct{})
	var once sync.Once
	finish := func(cb *url.URL, err error) {
		once.Do(func() {
			close(done)
			onComplete(cb, err)
		})
	}

	listen := r.listen
	if listen == nil {
		listen = net.Listen
	}
	ln, err := listen("tcp", r.ReturnURL.Host)
	if err != nil {
		stopTimer()
		r.release()
		onDisplay(false)
		finish(nil, fmt.Errorf("challenge callback listener on %s: %w", r.ReturnURL.Host, err))
		return
	}

	srv := &http.Server{Handler: r.engine(finish), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			r.Log.Warn("challenge callback server stopped", zap.Error(serveErr))
			finish(nil, fmt.Errorf("challenge callback server: %w", serveErr))
		}
	}()

	go func() {
		defer stopTimer()
		select {
		case <-done:
		case <-ctx.Done():
			finish(nil, fmt.Errorf("challenge aborted: %w", ctx.Err()))
		case <-timeout:
			finish(nil, fmt.Errorf("challenge timed out after %s", r.Timeout))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		// Serve may not have tracked ln yet.
		_ = ln.Close()
		r.release()
	}()

	if openErr := r.Open(u); openErr != nil {
		r.Log.Warn("could not open challenge URL", zap.String("url", u.Redacted()), zap.Error(openErr))
		onDisplay(false)
		finish(nil, fmt.Errorf("open challenge URL: %w", openErr))
		return
	}
	onDisplay(true)
}

func (r *LoopbackRunner) engine(finish func(*url.URL, error)) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET(r.ReturnURL.Path, func(c *gin.Context) {
		cb := *c.Request.URL
		cb.Scheme = r.ReturnURL.Scheme
		cb.Host = r.ReturnURL.Host
		c.String(http.StatusOK, "Verification complete. You can close this window.")
		finish(&cb, nil)
	})
	engine.GET(r.CancelURL.Path, func(c *gin.Context) {
		c.String(http.StatusOK, "Verification canceled. You can close this window.")
		finish(nil, ErrCanceled)
	})
	return engine
}
