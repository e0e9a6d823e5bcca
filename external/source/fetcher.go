package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/live-links/internal/platform/browser"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/platform/resilience"
	"github.com/riskibarqy/live-links/internal/usecase"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 6 << 20

var errSourceTransient = crerr.New("source transient failure")

type FetcherConfig struct {
	HTTPClient     *http.Client
	Timeout        time.Duration
	MaxRetries     int
	RatePerSecond  float64
	Burst          int
	Profile        *browser.Profile
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Fetcher downloads listing pages for every adapter. Each source gets its
// own breaker and each host its own limiter.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	rps        rate.Limit
	burst      int
	profile    *browser.Profile
	logger     *logging.Logger
	breakers   *resilience.BreakerSet

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	backoff func(attempt int) time.Duration
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	profile := cfg.Profile
	if profile == nil {
		profile = browser.NewProfile(nil, "")
	}

	rps := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		rps = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Fetcher{
		httpClient: httpClient,
		timeout:    timeout,
		maxRetries: maxInt(cfg.MaxRetries, 0),
		rps:        rps,
		burst:      burst,
		profile:    profile,
		logger:     logger,
		breakers:   resilience.NewBreakerSet(cfg.CircuitBreaker),
		limiters:   make(map[string]*rate.Limiter),
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * 500 * time.Millisecond
		},
	}
}

// Fetch downloads rawURL on behalf of source and returns the decoded body.
// Only transient failures count against the source's breaker.
func (f *Fetcher) Fetch(ctx context.Context, source, rawURL string) ([]byte, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid source url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var raw []byte
	err = f.breakers.Get(source).Execute(func() error {
		var reqErr error
		raw, reqErr = f.executeRequest(ctx, target)
		return reqErr
	}, isTransient)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		f.logger.WarnContext(ctx, "source circuit breaker rejected request", "source", source)
		return nil, fmt.Errorf("%w: source %s is temporarily unavailable", usecase.ErrDependencyUnavailable, source)
	}
	if err != nil {
		f.logger.WarnContext(ctx, "source request failed", "source", source, "url", rawURL, "error", err)
		return nil, err
	}
	return raw, nil
}

func (f *Fetcher) executeRequest(ctx context.Context, target *url.URL) ([]byte, error) {
	limiter := f.limiterFor(target.Host)

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", errSourceTransient, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		browser.Apply(req, f.profile.Headers(target))

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", errSourceTransient, err)
		} else {
			raw, readErr := readBody(resp)
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errSourceTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: source status=%d", errSourceTransient, resp.StatusCode)
			} else {
				return nil, fmt.Errorf("source status=%d", resp.StatusCode)
			}
		}

		if attempt == f.maxRetries {
			break
		}
		timer := time.NewTimer(f.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("source request failed")
	}
	return nil, lastErr
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	host = strings.ToLower(host)

	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(f.rps, f.burst)
	f.limiters[host] = l
	return l
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := browser.DecodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(io.LimitReader(body, maxBodyBytes))
}

func isTransient(err error) bool {
	return stderrors.Is(err, errSourceTransient) || stderrors.Is(err, context.DeadlineExceeded)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
