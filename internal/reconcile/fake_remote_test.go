package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

const waitTimeout = 2 * time.Second

var errBackend = errors.New("backend unavailable")

// scriptedRemote hands every create and delete to the test, which decides
// when and how the store answers. Feeds are driven by hand.
type scriptedRemote struct {
	creates chan *createCall
	deletes chan *deleteCall
	feeds   chan *fakeFeed

	mu        sync.Mutex
	listing   []domain.Bookmark
	listErr   error
	listCalls int
	subFails  int
}

type createCall struct {
	draft domain.Draft
	reply chan createReply
}

type createReply struct {
	rec domain.Bookmark
	err error
}

type deleteCall struct {
	id    string
	reply chan error
}

func newScriptedRemote() *scriptedRemote {
	return &scriptedRemote{
		creates: make(chan *createCall),
		deletes: make(chan *deleteCall),
		feeds:   make(chan *fakeFeed, 16),
	}
}

func (r *scriptedRemote) CreateRecord(ctx context.Context, draft domain.Draft) (domain.Bookmark, error) {
	c := &createCall{draft: draft, reply: make(chan createReply, 1)}
	select {
	case r.creates <- c:
	case <-ctx.Done():
		return domain.Bookmark{}, ctx.Err()
	}
	select {
	case res := <-c.reply:
		return res.rec, res.err
	case <-ctx.Done():
		return domain.Bookmark{}, ctx.Err()
	}
}

func (r *scriptedRemote) DeleteRecord(ctx context.Context, id string) error {
	c := &deleteCall{id: id, reply: make(chan error, 1)}
	select {
	case r.deletes <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *scriptedRemote) ListRecords(ctx context.Context, owner string) ([]domain.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return slices.Clone(r.listing), nil
}

func (r *scriptedRemote) SubscribeChanges(ctx context.Context, owner string) (domain.Subscription, error) {
	r.mu.Lock()
	if r.subFails > 0 {
		r.subFails--
		r.mu.Unlock()
		return nil, errBackend
	}
	r.mu.Unlock()

	f := &fakeFeed{
		owner:  owner,
		events: make(chan domain.ChangeEvent),
		closed: make(chan struct{}),
	}
	select {
	case r.feeds <- f:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f, nil
}

func (r *scriptedRemote) setListing(records ...domain.Bookmark) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listing = records
}

func (r *scriptedRemote) setSubFails(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subFails = n
}

func (r *scriptedRemote) listCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

func (r *scriptedRemote) expectCreate(t *testing.T) *createCall {
	t.Helper()
	select {
	case c := <-r.creates:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("no create reached the store")
		return nil
	}
}

func (r *scriptedRemote) expectDelete(t *testing.T) *deleteCall {
	t.Helper()
	select {
	case c := <-r.deletes:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("no delete reached the store")
		return nil
	}
}

func (r *scriptedRemote) expectNoDelete(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case c := <-r.deletes:
		t.Fatalf("unexpected delete of %q", c.id)
	case <-time.After(within):
	}
}

func (r *scriptedRemote) expectFeed(t *testing.T) *fakeFeed {
	t.Helper()
	select {
	case f := <-r.feeds:
		return f
	case <-time.After(waitTimeout):
		t.Fatal("no subscription was opened")
		return nil
	}
}

// fakeFeed is a hand-driven domain.Subscription
type fakeFeed struct {
	owner  string
	events chan domain.ChangeEvent
	closed chan struct{}
	once   sync.Once
	marks  atomic.Int32
}

func (f *fakeFeed) Events() <-chan domain.ChangeEvent { return f.events }

func (f *fakeFeed) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeFeed) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// drop simulates the store losing the subscription
func (f *fakeFeed) drop() { close(f.events) }

func (f *fakeFeed) send(t *testing.T, ev domain.ChangeEvent) {
	t.Helper()
	select {
	case f.events <- ev:
	case <-time.After(waitTimeout):
		t.Fatalf("listener did not take %s event", ev.Kind)
	}
}

// settle pushes a marker record through the feed and waits until it has
// come and gone, so every event sent before it has been applied.
func (f *fakeFeed) settle(t *testing.T, c *Client) {
	t.Helper()
	id := fmt.Sprintf("marker-%d", f.marks.Add(1))
	f.send(t, domain.ChangeEvent{Kind: domain.EventInsert, Record: bm(id, f.owner, 0)})
	waitFor(t, func() bool { return hasID(c.Snapshot(), id) })
	f.send(t, domain.ChangeEvent{Kind: domain.EventDelete, ID: id})
	waitFor(t, func() bool { return !hasID(c.Snapshot(), id) })
}

// ─────────────────────────────
// helpers
// ─────────────────────────────

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func bm(id, owner string, minutes int) domain.Bookmark {
	return domain.Bookmark{
		ID:        id,
		Owner:     owner,
		Title:     "title " + id,
		URL:       "https://example.com/" + id,
		CreatedAt: t0.Add(time.Duration(minutes) * time.Minute),
	}
}

func hasID(records []domain.Bookmark, id string) bool {
	return slices.ContainsFunc(records, func(b domain.Bookmark) bool { return b.ID == id })
}

func countID(records []domain.Bookmark, id string) int {
	n := 0
	for _, b := range records {
		if b.ID == id {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func testOptions() Options {
	var n atomic.Int64
	return Options{
		ResubscribeInitial: time.Millisecond,
		ResubscribeMax:     5 * time.Millisecond,
		RefetchInterval:    10 * time.Millisecond,
		Now: func() time.Time {
			return t0.Add(time.Duration(n.Add(1)) * time.Hour)
		},
		NewID: func() string {
			return fmt.Sprintf("%s%d", domain.TempIDPrefix, n.Add(1))
		},
	}
}

// signedIn returns a client signed in as u1 and the session's feed
func signedIn(t *testing.T, r *scriptedRemote, opts Options) (*Client, *fakeFeed) {
	t.Helper()
	c := NewClient(r, opts)
	t.Cleanup(c.Close)

	if _, err := c.SignIn(context.Background(), "u1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	return c, r.expectFeed(t)
}

type createResult struct {
	rec domain.Bookmark
	err error
}

// startCreate runs Create in the background and returns the store call
// it produced.
func startCreate(t *testing.T, c *Client, r *scriptedRemote, title, url string) (*createCall, <-chan createResult) {
	t.Helper()
	done := make(chan createResult, 1)
	go func() {
		rec, err := c.Create(context.Background(), title, url)
		done <- createResult{rec, err}
	}()
	return r.expectCreate(t), done
}

func startDelete(c *Client, id string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Delete(context.Background(), id) }()
	return done
}

func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("operation did not complete")
		var zero T
		return zero
	}
}
