// Package fetch is the single outbound HTTP path for the pipeline. Source
// ingestion and evidence lookups both go through it, so politeness
// (robots.txt, per-host rate limits), timeouts, retries, and response
// caching are enforced in one place.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veridexhq/veridex/internal/config"
)

// ErrRobotsDisallowed marks a URL the host's robots.txt forbids.
var ErrRobotsDisallowed = errors.New("fetch: disallowed by robots.txt")

// sleep is injectable for backoff tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Result is a fetched response body plus metadata.
type Result struct {
	Body       string
	StatusCode int
	FinalURL   string
	FromCache  bool
	FetchedAt  time.Time
}

// Fetcher performs polite, cached, retried GETs.
type Fetcher struct {
	client      *http.Client
	cache       Cache
	robots      *RobotsChecker
	limiter     *HostLimiter
	userAgent   string
	maxBytes    int64
	maxAttempts int
	backoffBase time.Duration
	cacheTTL    time.Duration
}

// New builds a Fetcher from the fetch configuration.
func New(cfg config.FetchConfig) *Fetcher {
	var cache Cache
	memory := NewMemoryCache(cfg.CacheTTL)
	if cfg.CacheDir != "" {
		cache = NewLayeredCache(memory, NewDiskCache(cfg.CacheDir))
	} else {
		cache = memory
	}

	var robots *RobotsChecker
	if cfg.RespectRobots {
		robots = NewRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: newProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		cache:       cache,
		robots:      robots,
		limiter:     NewHostLimiter(cfg.RatePerHost, cfg.RateBurst),
		userAgent:   cfg.UserAgent,
		maxBytes:    cfg.MaxBodyBytes,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		cacheTTL:    cfg.CacheTTL,
	}
}

// Get fetches a URL, serving from cache when possible and retrying
// transient failures with exponential backoff.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	key := CacheKey(rawURL)
	if body, ok := f.cache.Get(key); ok {
		return &Result{
			Body:       string(body),
			StatusCode: http.StatusOK,
			FinalURL:   rawURL,
			FromCache:  true,
			FetchedAt:  time.Now().UTC(),
		}, nil
	}

	if f.robots != nil {
		allowed, delay := f.robots.Allowed(ctx, rawURL)
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
		}
		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := f.backoffBase * time.Duration(1<<uint(attempt-1))
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}

		result, err := f.do(ctx, rawURL)
		if err == nil {
			f.cache.Set(key, []byte(result.Body), f.cacheTTL)
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, url: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Result{
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// statusError carries a non-2xx response code through the retry decision.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.url, e.code)
}

// retryable classifies errors into the transient bucket: 5xx, 429, and
// network-level failures retry; everything else fails fast.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || (se.code >= 500 && se.code < 600)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

// newProxyFunc honors explicit proxy settings, falling back to the
// environment when none are configured.
func newProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		for _, host := range strings.Split(noProxy, ",") {
			if host != "" && strings.HasSuffix(req.URL.Host, strings.TrimSpace(host)) {
				return nil, nil
			}
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
