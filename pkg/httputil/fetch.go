package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/harvest/pkg/buildinfo"
	"github.com/matzehuels/harvest/pkg/cache"
	"github.com/matzehuels/harvest/pkg/observability"
)

// Sentinel errors returned by Fetcher.Get.
var (
	ErrNotFound = errors.New("resource not found")
	ErrNetwork  = errors.New("network error")
	ErrTooLarge = errors.New("response too large")
)

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes = 64 << 20

// Options configure a Fetcher.
type Options struct {
	Client   *http.Client
	Keyer    cache.Keyer
	TTL      time.Duration
	MaxBytes int64
	// Refresh bypasses cached entries but still stores the new body.
	Refresh bool
}

// Fetcher performs cached HTTP GETs.
type Fetcher struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	max     int64
	refresh bool
}

// NewFetcher creates a Fetcher backed by c. A nil c disables caching.
func NewFetcher(c cache.Cache, opts Options) *Fetcher {
	if c == nil {
		c = cache.NewNullCache()
	}
	if opts.Client == nil {
		opts.Client = NewHTTPClient()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		http:    opts.Client,
		cache:   c,
		keyer:   opts.Keyer,
		ttl:     opts.TTL,
		max:     opts.MaxBytes,
		refresh: opts.Refresh,
	}
}

// NewHTTPClient returns the client used for downloads.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// Get returns the body at url, consulting the cache under kind first.
func (f *Fetcher) Get(ctx context.Context, kind, url string) ([]byte, error) {
	key := f.keyer.SourceKey(kind, url)
	hooks := observability.Cache()

	if !f.refresh {
		if data, ok, err := f.cache.Get(ctx, key); err == nil && ok {
			hooks.OnHit(ctx, kind, key)
			return data, nil
		}
	}
	hooks.OnMiss(ctx, kind, key)

	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}
	_ = f.cache.Set(ctx, key, data, f.ttl)
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		observability.HTTP().OnRequest(ctx, url, 0, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	observability.HTTP().OnRequest(ctx, url, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if int64(len(data)) > f.max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.max)
	}
	return data, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
