package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

type createRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ListBookmarks returns the current view, newest first
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := d.Client.Session()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

// CreateBookmark creates a bookmark and answers once the store confirmed it
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		ctx, cancel := mutationContext(r, d)
		defer cancel()

		rec, err := d.Client.Create(ctx, req.Title, req.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// DeleteBookmark deletes a bookmark by ID (temporary IDs included)
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := mutationContext(r, d)
		defer cancel()

		if err := d.Client.Delete(ctx, chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RefreshBookmarks refetches the view from the store and returns it.
// While live updates are down the refetch is queued instead (202).
func RefreshBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queued, err := d.Client.Refresh()
		if err != nil {
			writeError(w, err)
			return
		}
		if queued {
			d.Logger.Info("manual refetch queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
			return
		}
		writeJSON(w, http.StatusOK, d.Client.Snapshot())
	}
}

// ImportBookmarks runs the homepage import synchronously
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Importer == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no import file configured"})
			return
		}
		if _, err := d.Client.Session(); err != nil {
			writeError(w, err)
			return
		}

		res, err := d.Importer.Import(r.Context(), d.Client)
		if err != nil {
			writeJSON(w, statusFor(err), struct {
				Result any    `json:"result"`
				Error  string `json:"error"`
			}{res, err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func mutationContext(r *http.Request, d deps.Deps) (context.Context, context.CancelFunc) {
	if d.MutationTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), d.MutationTimeout)
}

