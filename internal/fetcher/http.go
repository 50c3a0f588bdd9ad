// Package fetcher downloads candidate listings from state election sites
// with retries, rate limiting, and a local cache of the last good payload.
package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrChallenge reports that the origin returned an anti-bot challenge page
// instead of the listing. Working around it is out of scope; operators save
// the page manually and point the source at the local copy.
var ErrChallenge = eris.New("fetcher: challenge page served instead of content")

// challengeMarkers are substrings that identify a Cloudflare interstitial.
var challengeMarkers = []string{
	"cf-browser-verification",
	"Just a moment",
}

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RatePerSec throttles requests per host. Zero means 2/s; state sites
	// are small and unfriendly to bursts.
	RatePerSec float64
	// CacheDir, when set, keeps the last successful payload per source so
	// ingestion can rerun offline with --use-cache.
	CacheDir string
}

// HTTPFetcher implements fetching with net/http plus retry and rate limiting.
// Safe for concurrent use.
type HTTPFetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex // guards limiters
	limiters map[string]*rate.Limiter
}

// New creates an HTTPFetcher with the given options.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Candidate-Database-Updater/1.0"
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 2
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(f.opts.RatePerSec), 1)
	f.limiters[host] = lim
	return lim
}

// Fetch downloads the URL and returns the body. Retries on network errors,
// 429s, and 5xx responses with capped exponential backoff. A challenge page
// fails immediately with ErrChallenge since retrying cannot clear it.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("http request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
			zap.L().Warn("retryable status, backing off",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			f.backoff(ctx, attempt)
			continue
		}

		if isChallenge(body) {
			zap.L().Warn("challenge page detected", zap.String("url", rawURL))
			return nil, eris.Wrapf(ErrChallenge, "fetcher: %s", rawURL)
		}

		return body, nil
	}

	return nil, eris.Wrap(lastErr, "fetcher: all retries exhausted")
}

// FetchCached fetches the URL and writes the payload to the cache under key.
// With useCache set and a cached copy present, the network is skipped.
func (f *HTTPFetcher) FetchCached(ctx context.Context, rawURL, key string, useCache bool) ([]byte, error) {
	path := f.cachePath(key)

	if useCache && path != "" {
		if body, err := os.ReadFile(path); err == nil {
			zap.L().Info("using cached payload",
				zap.String("key", key),
				zap.Int("bytes", len(body)),
			)
			return body, nil
		}
		zap.L().Info("cache miss, fetching", zap.String("key", key))
	}

	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if path != "" {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr == nil {
			if wrErr := os.WriteFile(path, body, 0o644); wrErr != nil {
				zap.L().Warn("failed to cache payload", zap.String("key", key), zap.Error(wrErr))
			}
		}
	}

	return body, nil
}

func (f *HTTPFetcher) cachePath(key string) string {
	if f.opts.CacheDir == "" || key == "" {
		return ""
	}
	return filepath.Join(f.opts.CacheDir, key)
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isChallenge(body []byte) bool {
	s := string(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
