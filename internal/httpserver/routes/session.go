package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/handlers"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	r.Route("/session", func(r chi.Router) {
		r.Use(guard(d)...)
		r.Get("/", handlers.GetSession(d))
		r.With(throttle(d)).Post("/", handlers.SignIn(d))
		r.Delete("/", handlers.SignOut(d))
	})
}
