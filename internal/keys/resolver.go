// Package keys resolves the identity provider's public signing keys.
//
// Keys are fetched from a JWKS endpoint on demand and cached process wide.
// Refreshes triggered by unknown key ids are coalesced into a single in-flight
// fetch and bounded by a token bucket, so a burst of tokens signed with an
// unknown key cannot hammer the provider.
package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/KatnessChen/MaraMap-Backend/internal/metrics"
)

var (
	// ErrKeyNotFound is returned when the key id is not part of the published key set.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrKeyUnavailable is returned when the key set could not be fetched,
	// either because the endpoint failed or the refresh budget is exhausted.
	ErrKeyUnavailable = errors.New("signing keys unavailable")
)

const (
	DefaultCacheTTL         = time.Hour
	DefaultNegativeTTL      = 30 * time.Second
	DefaultRefreshPerMinute = 10
	DefaultFetchTimeout     = 5 * time.Second

	// all misses share one flight, the fetched set answers every pending kid
	refreshFlightKey = "jwks"
)

// SigningKey is a single public key published by the identity provider.
type SigningKey struct {
	KeyID     string
	Algorithm string
	Use       string
	Key       crypto.PublicKey
}

// KeyType returns the JWK key type of the key.
func (k SigningKey) KeyType() string {
	switch k.Key.(type) {
	case *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PublicKey:
		return "EC"
	case ed25519.PublicKey:
		return "OKP"
	default:
		return "unknown"
	}
}

type Config struct {
	// JWKSURL is the endpoint the key set is fetched from.
	JWKSURL string

	// CacheTTL is how long a fetched key is kept without being seen again.
	CacheTTL time.Duration

	// NegativeTTL is how long a key id that was absent from a fresh key set
	// is answered with ErrKeyNotFound without another fetch.
	NegativeTTL time.Duration

	// RefreshPerMinute bounds the number of outbound fetches.
	RefreshPerMinute int

	// RefreshBurst is the number of fetches allowed back to back. It is
	// clamped to [1, RefreshPerMinute] and defaults to 1. The refill rate is
	// lowered by the burst so that no 60s window sees more than
	// RefreshPerMinute fetches.
	RefreshBurst int

	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration

	// HTTPClient is used for fetching. Defaults to a client with FetchTimeout.
	HTTPClient *http.Client

	// Clock drives the refresh budget. Defaults to time.Now.
	Clock func() time.Time
}

func (c *Config) setDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = DefaultNegativeTTL
	}
	if c.RefreshPerMinute <= 0 {
		c.RefreshPerMinute = DefaultRefreshPerMinute
	}
	if c.RefreshBurst <= 0 {
		c.RefreshBurst = 1
	}
	if c.RefreshBurst > c.RefreshPerMinute {
		c.RefreshBurst = c.RefreshPerMinute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// refillInterval spaces refills so that the burst plus the refills landing
// in any 60s window stay within perMinute.
func refillInterval(perMinute, burst int) time.Duration {
	return time.Minute / time.Duration(perMinute-burst+1)
}

// Resolver looks up signing keys by key id.
// It is safe for concurrent use.
type Resolver struct {
	conf    Config
	keys    *gocache.Cache // kid -> *SigningKey
	missing *gocache.Cache // kid -> struct{}
	limiter *rate.Limiter
	flight  singleflight.Group

	// unix nanos of the last successful fetch
	lastFetched atomic.Int64
}

func NewResolver(conf Config) (*Resolver, error) {
	if conf.JWKSURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}
	conf.setDefaults()

	every := refillInterval(conf.RefreshPerMinute, conf.RefreshBurst)
	return &Resolver{
		conf:    conf,
		keys:    gocache.New(conf.CacheTTL, conf.CacheTTL),
		missing: gocache.New(conf.NegativeTTL, conf.NegativeTTL),
		limiter: rate.NewLimiter(rate.Every(every), conf.RefreshBurst),
	}, nil
}

// URL returns the JWKS endpoint this resolver fetches from.
func (r *Resolver) URL() string {
	return r.conf.JWKSURL
}

// Resolve returns the signing key with the given key id.
// On a cache miss the key set is refreshed, subject to the refresh rate limit.
func (r *Resolver) Resolve(ctx context.Context, kid string) (*SigningKey, error) {
	missedAt := r.conf.Clock()
	if key, ok := r.cached(kid); ok {
		return key, nil
	}
	if _, known := r.missing.Get(kid); known {
		return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
	}

	if err := r.refresh(ctx, missedAt); err != nil {
		// another request may have populated the cache in the meantime
		if key, ok := r.cached(kid); ok {
			return key, nil
		}
		return nil, err
	}

	if key, ok := r.cached(kid); ok {
		return key, nil
	}
	r.missing.SetDefault(kid, struct{}{})
	return nil, fmt.Errorf("kid %q: %w", kid, ErrKeyNotFound)
}

// Refresh fetches the key set now. It obeys the same rate limit as refreshes
// triggered by unknown key ids.
func (r *Resolver) Refresh(ctx context.Context) error {
	return r.refresh(ctx, r.conf.Clock())
}

// Keys returns a snapshot of the currently cached keys.
func (r *Resolver) Keys() []SigningKey {
	items := r.keys.Items()
	out := make([]SigningKey, 0, len(items))
	for _, item := range items {
		if key, ok := item.Object.(*SigningKey); ok {
			out = append(out, *key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out
}

// Invalidate drops a single key from the cache.
func (r *Resolver) Invalidate(kid string) {
	r.keys.Delete(kid)
	metrics.JWKSCachedKeys.Set(float64(r.keys.ItemCount()))
}

// Purge drops all cached keys and negative entries.
func (r *Resolver) Purge() {
	r.keys.Flush()
	r.missing.Flush()
	metrics.JWKSCachedKeys.Set(0)
}

func (r *Resolver) cached(kid string) (*SigningKey, bool) {
	v, ok := r.keys.Get(kid)
	if !ok {
		return nil, false
	}
	return v.(*SigningKey), true
}

// refresh joins the in-flight fetch or starts a new one. A fetch that
// completed after since already answers the caller and is not repeated.
// The fetch itself is detached from ctx so that a cancelled caller does not
// fail the other waiters; the caller stops waiting when ctx is done.
func (r *Resolver) refresh(ctx context.Context, since time.Time) error {
	ch := r.flight.DoChan(refreshFlightKey, func() (any, error) {
		if r.lastFetched.Load() > since.UnixNano() {
			return 0, nil
		}
		if !r.limiter.AllowN(r.conf.Clock(), 1) {
			metrics.RecordJWKSRefresh(metrics.RefreshRateLimited)
			return nil, fmt.Errorf("refresh rate limit exceeded: %w", ErrKeyUnavailable)
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.conf.FetchTimeout)
		defer cancel()

		set, err := fetchKeySet(fetchCtx, r.conf.HTTPClient, r.conf.JWKSURL)
		if err != nil {
			metrics.RecordJWKSRefresh(metrics.RefreshError)
			return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
		}
		metrics.RecordJWKSRefresh(metrics.RefreshOK)
		r.lastFetched.Store(r.conf.Clock().UnixNano())

		for _, key := range set {
			r.keys.SetDefault(key.KeyID, key)
			r.missing.Delete(key.KeyID)
		}
		metrics.JWKSCachedKeys.Set(float64(r.keys.ItemCount()))

		log.Ctx(ctx).Debug().
			Str("jwks_url", r.conf.JWKSURL).
			Int("keys", len(set)).
			Msg("jwks.refreshed")
		return len(set), nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("waiting for key refresh: %w: %w", ErrKeyUnavailable, ctx.Err())
	}
}
