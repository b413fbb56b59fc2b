// Package fetch implements bounded HTTP retrieval for the scrape pipeline.
//
// Each fetch applies a per-attempt timeout and retries transient failures
// with linearly increasing backoff (timeouts and other transport errors use
// different backoff units). Bodies whose declared length exceeds the size
// ceiling are not downloaded at all; the response status is preserved so the
// abort can be recorded.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Result contains the outcome of a successful fetch.
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
	// TooLarge is set when the server-declared length exceeded MaxBytes and
	// the body was deliberately not downloaded. Body is empty, StatusCode
	// and ContentType reflect the observed response.
	TooLarge bool
}

// Error is returned when all fetch attempts are exhausted.
// StatusCode is the last observed HTTP status, 0 if no response was ever
// received. It is a soft failure: the batch continues.
type Error struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts failed (last status %d): %v",
		e.URL, e.Attempts, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures the fetcher.
type Config struct {
	// Timeout is the per-attempt deadline. Default: 20s.
	Timeout time.Duration
	// MaxBytes is the declared-body-size ceiling. Default: 10,000,000.
	MaxBytes int64
	// MaxRetries is the number of retries after the first attempt.
	// Default: 2 (3 attempts total).
	MaxRetries int
	// TimeoutBackoff is the linear backoff unit after a timeout. Default: 1s.
	TimeoutBackoff time.Duration
	// ErrorBackoff is the linear backoff unit after other transport errors.
	// Default: 500ms.
	ErrorBackoff time.Duration
	// UserAgent sent with every request.
	UserAgent string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10_000_000
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.TimeoutBackoff <= 0 {
		c.TimeoutBackoff = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 500 * time.Millisecond
	}
	if c.UserAgent == "" {
		c.UserAgent = "moisson-research/1.0 (+https://hazyhaar.net/moisson)"
	}
}

// Fetcher performs HTTP requests with retry and size capping.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with a bounded redirect chain.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a URL. Non-2xx responses that carry a body are returned as
// success with the status recorded; classifying them is the caller's job.
// A declared Content-Length above MaxBytes returns Result{TooLarge: true}
// without downloading the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	var lastErr error
	lastStatus := 0
	attempts := 0

	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		attempts++
		res, status, err := f.attempt(ctx, url)
		if err == nil {
			return res, nil
		}
		if status != 0 {
			lastStatus = status
		}
		lastErr = err

		// Parent cancellation is not a transient condition.
		if ctx.Err() != nil {
			break
		}
		if attempt < f.config.MaxRetries {
			unit := f.config.ErrorBackoff
			if isTimeout(err) {
				unit = f.config.TimeoutBackoff
			}
			if !sleep(ctx, time.Duration(attempt+1)*unit) {
				break
			}
		}
	}

	return nil, &Error{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (*Result, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")

	if resp.ContentLength > f.config.MaxBytes {
		// Abort without downloading; the status is preserved so the caller
		// can record the capped fetch.
		return &Result{ContentType: ct, StatusCode: resp.StatusCode, TooLarge: true}, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	return &Result{Body: body, ContentType: ct, StatusCode: resp.StatusCode}, resp.StatusCode, nil
}

// isTimeout reports whether err is a deadline or net timeout, which backs
// off with the longer unit.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleep waits for d or until ctx is done; returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
