package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/handlers"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/bookmarks", func(r chi.Router) {
		r.Use(guard(d)...)
		r.Get("/", handlers.ListBookmarks(d))
		r.With(throttle(d)).Post("/", handlers.CreateBookmark(d))
		r.With(throttle(d)).Post("/import", handlers.ImportBookmarks(d))
		r.With(throttle(d)).Post("/refresh", handlers.RefreshBookmarks(d))
		r.Delete("/{id}", handlers.DeleteBookmark(d))
	})
}
