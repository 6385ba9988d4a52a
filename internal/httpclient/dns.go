package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/webintel/internal/metrics"
)

const lookupTimeout = 5 * time.Second

// LookupFunc resolves a host to its addresses. It adapts a plain function to
// dnscache.DNSResolver.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// LookupHost implements dnscache.DNSResolver.
func (f LookupFunc) LookupHost(ctx context.Context, host string) ([]string, error) {
	return f(ctx, host)
}

// LookupAddr implements dnscache.DNSResolver. Reverse lookups are not used.
func (LookupFunc) LookupAddr(_ context.Context, addr string) ([]string, error) {
	return nil, fmt.Errorf("reverse lookup %s: not supported", addr)
}

// Resolver caches host lookups in a dnscache.Resolver. Once ttl has passed
// since the last refresh, the next lookup refreshes the cache in the
// background: hosts used since then are re-resolved and the rest dropped.
// A failed lookup schedules a refresh so the host is retried. Concurrent
// misses for the same host share one lookup.
type Resolver struct {
	cache *dnscache.Resolver
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu         sync.Mutex
	refreshed  time.Time
	refreshing bool
}

// NewResolver returns a Resolver backed by net.DefaultResolver.
func NewResolver(ttl time.Duration) *Resolver {
	return newResolver(ttl, net.DefaultResolver)
}

// NewResolverWithLookup returns a Resolver backed by lookup.
func NewResolverWithLookup(ttl time.Duration, lookup LookupFunc) *Resolver {
	return newResolver(ttl, lookup)
}

func newResolver(ttl time.Duration, upstream dnscache.DNSResolver) *Resolver {
	r := &Resolver{
		ttl: ttl,
		now: time.Now,
	}
	r.cache = &dnscache.Resolver{
		Timeout:     lookupTimeout,
		Resolver:    upstream,
		OnCacheMiss: func() { metrics.ObserveDNSLookup("miss") },
	}
	r.refreshed = r.now()
	return r
}

// LookupHost returns cached addresses for host, resolving on a miss.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.refreshIfDue(false)
	metrics.ObserveDNSLookup("lookup")

	ch := r.group.DoChan(host, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		addrs, err := r.cache.LookupHost(lookupCtx, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("lookup %s: no addresses", host)
		}
		return addrs, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup %s: %w", host, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			metrics.ObserveDNSLookup("error")
			r.refreshIfDue(true)
			return nil, fmt.Errorf("lookup %s: %w", host, res.Err)
		}
		return res.Val.([]string), nil
	}
}

// Refresh re-resolves every host used since the last refresh and drops the
// others. It blocks until the lookups finish.
func (r *Resolver) Refresh() {
	r.cache.Refresh(true)
	r.mu.Lock()
	r.refreshed = r.now()
	r.mu.Unlock()
}

// refreshIfDue starts a background refresh when the ttl has passed, or
// unconditionally when force is set. At most one refresh runs at a time.
func (r *Resolver) refreshIfDue(force bool) {
	r.mu.Lock()
	due := !r.refreshing && (force || r.now().Sub(r.refreshed) >= r.ttl)
	if due {
		r.refreshing = true
	}
	r.mu.Unlock()
	if !due {
		return
	}
	go func() {
		r.cache.Refresh(true)
		r.mu.Lock()
		r.refreshed = r.now()
		r.refreshing = false
		r.mu.Unlock()
	}()
}

// DialContext returns a dial function that resolves through the cache and
// tries each address in turn.
func (r *Resolver) DialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("split host port: %w", err)
		}
		if net.ParseIP(host) != nil {
			return dialer.DialContext(ctx, network, addr)
		}
		addrs, err := r.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var errs []error
		for _, ip := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
		return nil, fmt.Errorf("dial %s: %w", addr, errors.Join(errs...))
	}
}
