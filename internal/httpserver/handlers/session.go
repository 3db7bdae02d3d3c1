package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

type signInRequest struct {
	Owner string `json:"owner"`
}

// GetSession returns the sync status of the signed-in owner
func GetSession(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Client.Status()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// SignIn starts a session for the posted owner and, when configured,
// imports homepage bookmarks in the background.
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		sess, err := d.Client.SignIn(r.Context(), req.Owner)
		if err != nil {
			writeError(w, err)
			return
		}

		StartImport(d)
		writeJSON(w, http.StatusOK, sess.Status())
	}
}

// SignOut ends the current session
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Client.SignOut()
		w.WriteHeader(http.StatusNoContent)
	}
}

// StartImport runs the homepage import without blocking the caller.
// It is a no-op when no import file is configured.
func StartImport(d deps.Deps) {
	if d.Importer == nil {
		return
	}
	go func() {
		if _, err := d.Importer.Import(context.Background(), d.Client); err != nil {
			d.Logger.Warn("homepage import failed", logger.Error(err))
		}
	}()
}
