package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/reconcile"
)

const (
	syncSignedOut = "signed-out"
	syncLive      = "live"
	syncDegraded  = "degraded"
	syncOffline   = "resubscribing"
)

type storeStatus struct {
	OK    bool   `json:"ok"`
	Kind  string `json:"kind"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready bool              `json:"ready"`
	Store storeStatus       `json:"store"`
	Mode  string            `json:"sync_mode"`
	Sync  *reconcile.Status `json:"sync,omitempty"`
}

// Readyz reports whether the store answers and how the session is syncing.
// Only an unreachable store makes the service unready: a degraded
// session still serves reads and writes.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{
			Store: checkStore(r.Context(), d),
			Mode:  syncSignedOut,
		}

		if st, err := d.Client.Status(); err == nil {
			resp.Sync = &st
			switch {
			case st.Degraded:
				resp.Mode = syncDegraded
			case st.Subscribed:
				resp.Mode = syncLive
			default:
				resp.Mode = syncOffline
			}
		}

		resp.Ready = resp.Store.OK
		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func checkStore(ctx context.Context, d deps.Deps) storeStatus {
	if d.RedisClient == nil {
		return storeStatus{OK: true, Kind: "memory"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return storeStatus{OK: false, Kind: "redis", Error: err.Error()}
	}
	return storeStatus{OK: true, Kind: "redis"}
}
