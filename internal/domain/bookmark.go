package domain

import (
	"strings"
	"time"
)

// Bookmark is a named URL record owned by a single user.
//
// The same structure is used for confirmed records (returned by a
// RemoteStore) and for optimistic records shown before confirmation.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is unique within an owner's collection.
	// Optimistic records carry a temporary ID (see NewTempID) that is
	// replaced by the store-assigned ID once the create is confirmed.
	ID string `json:"id"`

	// Owner is the authenticated user the record belongs to.
	Owner string `json:"owner"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the display name. Never empty.
	Title string `json:"title"`

	// URL is the target link. Never empty; syntax is not checked here.
	URL string `json:"url"`

	// ─────────────────────────────
	// Ordering & lifecycle
	// ─────────────────────────────

	// CreatedAt is the only ordering key (newest first).
	CreatedAt time.Time `json:"created_at"`

	// Pending is true while the record only exists locally.
	// Stores never persist it.
	Pending bool `json:"pending,omitempty"`
}

// Draft is the payload submitted to a RemoteStore to create a bookmark.
type Draft struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Owner string `json:"owner"`
}

// Validate rejects drafts with an empty title or URL.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return invalidInput("title is required")
	}
	if strings.TrimSpace(d.URL) == "" {
		return invalidInput("url is required")
	}
	return nil
}

// Newer reports whether a sorts before b in a newest-first collection.
// Equal timestamps fall back to ID so the order is total.
func Newer(a, b Bookmark) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Compare orders bookmarks newest first, for slices.SortFunc.
func Compare(a, b Bookmark) int {
	switch {
	case Newer(a, b):
		return -1
	case Newer(b, a):
		return 1
	default:
		return 0
	}
}
