package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/mw"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg       Registrar
	mws       []Middleware
	longLived bool
}

var registry []entry

// Register a registrar with optional per-route middlewares.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterLongLived registers routes that must not get the request timeout.
func RegisterLongLived(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws, longLived: true})
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps) {
	timed := r.With()
	if d.RequestTimeout > 0 {
		timed = r.With(middleware.Timeout(d.RequestTimeout))
	}
	for _, e := range registry {
		target := timed
		if e.longLived {
			target = r.With()
		}
		if len(e.mws) > 0 {
			target = target.With(e.mws...) // apply per-route middlewares
		}
		e.reg(target, d)
	}
}

// guard restricts API routes to allowed clients and hosts
func guard(d deps.Deps) []Middleware {
	return []Middleware{
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	}
}

// throttle rate limits mutating routes per client IP
func throttle(d deps.Deps) Middleware {
	return mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})
}
