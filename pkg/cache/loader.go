package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared load when Loader.Timeout is not set.
const DefaultLoadTimeout = 30 * time.Second

// Loader serves values from a Service and collapses concurrent misses of one key into a
// single load. A nil Service only collapses.
type Loader struct {
	svc   Service
	group singleflight.Group
	// Timeout bounds each shared load, which does not inherit any caller's deadline.
	Timeout time.Duration
	// OnError observes cache read and write failures. They never fail a load.
	OnError func(op, key string, err error)
}

func NewLoader(svc Service) *Loader {
	return &Loader{svc: svc, Timeout: DefaultLoadTimeout}
}

// Load returns the cached value of key, or runs load once for all concurrent callers and
// caches the result for ttl. hit reports whether the value came from the cache. The shared
// load outlives any single caller's cancellation and is bounded by l.Timeout instead.
func Load[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if l.svc != nil {
		var cached T
		if gerr := l.svc.Get(ctx, key, &cached); gerr == nil {
			return cached, true, nil
		} else if !errors.Is(gerr, ErrCacheMiss) {
			l.report("get", key, gerr)
		}
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		timeout := l.Timeout
		if timeout <= 0 {
			timeout = DefaultLoadTimeout
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		val, lerr := load(shared)
		if lerr != nil {
			return val, lerr
		}
		if l.svc != nil {
			if serr := l.svc.Set(shared, key, val, ttl); serr != nil {
				l.report("set", key, serr)
			}
		}
		return val, nil
	})

	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return v, false, res.Err
		}
		v, _ = res.Val.(T)
		return v, false, nil
	}
}

func (l *Loader) report(op, key string, err error) {
	if l.OnError != nil {
		l.OnError(op, key, err)
	}
}
