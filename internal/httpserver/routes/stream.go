package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/mw"
)

// The stream is long-lived, so it is registered without the request
// timeout the other routes get.
func init() { RegisterLongLived(registerStream) }

func registerStream(r chi.Router, d deps.Deps) {
	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	).Get("/bookmarks/stream", handlers.Stream(d))
}
