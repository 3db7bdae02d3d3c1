package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

// Client owns the authentication boundary: at most one Session at a time.
// Every operation outside a session fails with domain.ErrUnauthenticated.
type Client struct {
	remote domain.RemoteStore
	opts   Options
	log    logger.Logger

	mu      sync.RWMutex
	session *Session
}

// NewClient creates a signed-out client
func NewClient(remote domain.RemoteStore, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		remote: remote,
		opts:   opts,
		log:    opts.Logger,
	}
}

// SignIn starts a session for owner, closing any session of another
// owner first. Signing in again as the current owner is a no-op.
func (c *Client) SignIn(ctx context.Context, owner string) (*Session, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrUnauthenticated)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		if c.session.Owner() == owner {
			return c.session, nil
		}
		c.session.Close()
		c.session = nil
	}

	s := newSession(c.remote, owner, c.opts)
	if err := s.start(ctx); err != nil {
		s.Close()
		c.log.Warn("sign-in failed", logger.String("owner", owner), logger.Error(err))
		return nil, err
	}

	c.session = s
	c.log.Info("signed in", logger.String("owner", owner))
	return s, nil
}

// SignOut closes the current session, if any. In-flight mutations
// complete without touching any view.
func (c *Client) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}
	owner := c.session.Owner()
	c.session.Close()
	c.session = nil
	c.log.Info("signed out", logger.String("owner", owner))
}

// Session returns the current session
func (c *Client) Session() (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return nil, domain.ErrUnauthenticated
	}
	return c.session, nil
}

// Create adds a bookmark through the current session
func (c *Client) Create(ctx context.Context, title, url string) (domain.Bookmark, error) {
	s, err := c.Session()
	if err != nil {
		mutationsTotal.WithLabelValues("create", "unauthenticated").Inc()
		return domain.Bookmark{}, err
	}
	return s.Create(ctx, title, url)
}

// Delete removes a bookmark through the current session
func (c *Client) Delete(ctx context.Context, id string) error {
	s, err := c.Session()
	if err != nil {
		mutationsTotal.WithLabelValues("delete", "unauthenticated").Inc()
		return err
	}
	return s.Delete(ctx, id)
}

// Refresh refetches the current session's view, see Session.Refresh
func (c *Client) Refresh() (queued bool, err error) {
	s, err := c.Session()
	if err != nil {
		return false, err
	}
	return s.Refresh()
}

// Snapshot returns the current view, or nil when signed out
func (c *Client) Snapshot() []domain.Bookmark {
	s, err := c.Session()
	if err != nil {
		return nil
	}
	return s.Snapshot()
}

// Status returns the current session's status
func (c *Client) Status() (Status, error) {
	s, err := c.Session()
	if err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// Close signs out
func (c *Client) Close() {
	c.SignOut()
}
