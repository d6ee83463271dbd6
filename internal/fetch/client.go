// Package fetch is the football API client. It wraps resty with the
// retry policy the rest of the pipeline assumes: transient statuses and
// transport errors back off exponentially, Retry-After is honored when
// the API throttles, and a 404 is an absent resource, not a failure.
// Every attempt is recorded through internal/metrics.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"footstats/internal/metrics"
	"footstats/pkg/records"
)

// Logger is the minimal logging seam, satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Retryable response statuses. Everything else either succeeds or
// fails the call outright.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// netBackoffMin is the floor for retry waits after transport errors,
// which usually mean the far side is in real trouble.
const netBackoffMin = 10 * time.Second

// Options configure a Client. Zero values get sensible defaults; the
// unexported fields are test seams.
type Options struct {
	// BaseURL is the API root, e.g. https://transfermarkt-api.fly.dev.
	BaseURL string

	// Timeout bounds one attempt. Default 30s.
	Timeout time.Duration

	// MaxAttempts bounds retries per call. Default 4.
	MaxAttempts int

	// BackoffBase and BackoffMax shape the exponential wait between
	// attempts. Defaults 2s and 60s.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// JitterMax adds a random politeness sleep before every request.
	// Zero disables it.
	JitterMax time.Duration

	Logger Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randn func(n int64) int64
}

// Client issues GETs against the API. It is safe for concurrent use by
// the per-category workers.
type Client struct {
	rc   *resty.Client
	opts Options
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 60 * time.Second
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.sleep == nil {
		opts.sleep = sleepContext
	}
	if opts.randn == nil {
		opts.randn = rand.Int63n
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetRetryCount(0)

	return &Client{rc: rc, opts: opts}
}

func (c *Client) logf(format string, v ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Printf(format, v...)
	}
}

// GetJSON fetches one path and decodes the JSON object it returns.
// ok=false with a nil error means the resource does not exist.
func (c *Client) GetJSON(ctx context.Context, job, path string, query map[string]string) (records.Raw, bool, error) {
	body, ok, err := c.get(ctx, job, path, query)
	if err != nil || !ok {
		return nil, ok, err
	}
	rec, err := records.DecodeRaw(bytes.NewReader(body))
	if err != nil {
		return nil, true, fmt.Errorf("fetch %s: %w", path, err)
	}
	return rec, true, nil
}

// GetBytes fetches one resource verbatim, for non-JSON pages such as
// league standings HTML. Absolute URLs bypass the configured base.
func (c *Client) GetBytes(ctx context.Context, job, url string) ([]byte, bool, error) {
	return c.get(ctx, job, url, nil)
}

// get runs the attempt loop. It returns the body on 2xx, ok=false on
// 404, and an error for non-retryable statuses or when the attempt
// budget runs out.
func (c *Client) get(ctx context.Context, job, path string, query map[string]string) ([]byte, bool, error) {
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if c.opts.JitterMax > 0 {
			if err := c.opts.sleep(ctx, time.Duration(c.opts.randn(int64(c.opts.JitterMax)))); err != nil {
				return nil, false, err
			}
		}

		start := c.opts.now()
		req := c.rc.R().SetContext(ctx)
		if len(query) > 0 {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(path)
		reqDur := c.opts.now().Sub(start)

		status := 0
		var size int64
		if resp != nil {
			status = resp.StatusCode()
			size = resp.Size()
		}
		metrics.RecordHTTP(job, status, err, reqDur, 0, size)

		var backoff time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			lastErr = fmt.Errorf("fetch %s: %w", path, err)
			backoff = c.backoff(attempt)
			if backoff < netBackoffMin {
				backoff = netBackoffMin
			}
			c.logf("warn=fetch_retry job=%s path=%s attempt=%d err=%v backoffMS=%d",
				job, path, attempt, err, backoff.Milliseconds())

		case status == http.StatusNotFound:
			c.logf("stage=fetch job=%s path=%s status=404 absent=1", job, path)
			return nil, false, nil

		case status >= 200 && status < 300:
			return resp.Body(), true, nil

		case retryStatuses[status]:
			lastErr = fmt.Errorf("fetch %s: status %d", path, status)
			backoff = c.backoff(attempt)
			if status == http.StatusTooManyRequests {
				if ra, ok := parseRetryAfter(resp.Header().Get("Retry-After"), c.opts.now()); ok {
					backoff = ra
					if backoff > c.opts.BackoffMax {
						backoff = c.opts.BackoffMax
					}
				}
			}
			c.logf("warn=fetch_retry job=%s path=%s attempt=%d status=%d backoffMS=%d",
				job, path, attempt, status, backoff.Milliseconds())

		default:
			return nil, false, fmt.Errorf("fetch %s: unexpected status %d", path, status)
		}

		if attempt == c.opts.MaxAttempts {
			break
		}
		if err := c.opts.sleep(ctx, backoff); err != nil {
			return nil, false, err
		}
	}

	return nil, false, fmt.Errorf("fetch: giving up after %d attempts: %w", c.opts.MaxAttempts, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.BackoffBase << uint(attempt-1)
	if d > c.opts.BackoffMax {
		d = c.opts.BackoffMax
	}
	return d
}

// parseRetryAfter understands both forms of the header: delta-seconds
// and an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
