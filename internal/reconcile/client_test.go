package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/store/memory"
)

func TestClient_Unauthenticated(t *testing.T) {
	r := newScriptedRemote()
	c := NewClient(r, testOptions())
	ctx := context.Background()

	if _, err := c.Create(ctx, "Example", "https://example.com"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Create() error = %v, want ErrUnauthenticated", err)
	}
	if err := c.Delete(ctx, "a"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Delete() error = %v, want ErrUnauthenticated", err)
	}
	if _, err := c.Status(); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Status() error = %v, want ErrUnauthenticated", err)
	}
	if got := c.Snapshot(); got != nil {
		t.Errorf("Snapshot() = %v, want nil", got)
	}
	if _, err := c.SignIn(ctx, "  "); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("SignIn(blank) error = %v, want ErrUnauthenticated", err)
	}

	// Signing out without a session is fine.
	c.SignOut()
}

func TestClient_SignInSwitchesOwner(t *testing.T) {
	r := newScriptedRemote()
	r.setListing(bm("a", "u1", 1))
	c, feed := signedIn(t, r, testOptions())
	ctx := context.Background()

	first, _ := c.Session()
	again, err := c.SignIn(ctx, "u1")
	if err != nil || again != first {
		t.Fatalf("SignIn(same owner) = %p, %v; want existing session", again, err)
	}

	second, err := c.SignIn(ctx, "u2")
	if err != nil {
		t.Fatalf("SignIn(u2) error = %v", err)
	}
	r.expectFeed(t)

	if second == first || second.Owner() != "u2" {
		t.Errorf("session owner = %q, want a new u2 session", second.Owner())
	}
	if !feed.isClosed() {
		t.Error("u1 subscription should be closed")
	}
	if got := first.Snapshot(); len(got) != 0 {
		t.Errorf("old session snapshot = %+v, want empty", got)
	}
	if _, err := first.Create(ctx, "Example", "https://example.com"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Create on closed session error = %v, want ErrUnauthenticated", err)
	}
}

func TestClient_SignInListingFails(t *testing.T) {
	r := newScriptedRemote()
	r.listErr = errBackend
	c := NewClient(r, testOptions())
	t.Cleanup(c.Close)

	_, err := c.SignIn(context.Background(), "u1")
	if !errors.Is(err, domain.ErrRemoteRejected) {
		t.Fatalf("SignIn() error = %v, want ErrRemoteRejected", err)
	}
	if feed := r.expectFeed(t); !feed.isClosed() {
		t.Error("subscription should be closed when sign-in fails")
	}
	if _, err := c.Session(); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Session() error = %v, want ErrUnauthenticated", err)
	}
}

// Two devices signed in as the same owner converge through the store's feed.
func TestClient_TwoDevicesConverge(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	devices := make([]*Client, 2)
	for i := range devices {
		devices[i] = NewClient(store, Options{ResubscribeInitial: time.Millisecond})
		t.Cleanup(devices[i].Close)
		if _, err := devices[i].SignIn(ctx, "u1"); err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
	}
	phone, laptop := devices[0], devices[1]

	rec, err := phone.Create(ctx, "Example", "https://example.com")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if countID(phone.Snapshot(), rec.ID) != 1 {
		t.Errorf("phone snapshot = %+v, want %s once", phone.Snapshot(), rec.ID)
	}
	waitFor(t, func() bool { return hasID(laptop.Snapshot(), rec.ID) })

	if err := laptop.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	waitFor(t, func() bool { return len(phone.Snapshot()) == 0 })

	if store.Count() != 0 {
		t.Errorf("store count = %d, want 0", store.Count())
	}
	for _, d := range devices {
		if got := d.Snapshot(); len(got) != 0 {
			t.Errorf("snapshot = %+v, want empty", got)
		}
	}
}

func TestClient_RecoversFromDroppedFeed(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	c := NewClient(store, Options{ResubscribeInitial: time.Millisecond, ResubscribeMax: 5 * time.Millisecond})
	t.Cleanup(c.Close)
	if _, err := c.SignIn(ctx, "u1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	store.DropSubscribers()
	// Written while the client may be between subscriptions.
	rec, err := store.CreateRecord(ctx, domain.Draft{Title: "Other", URL: "https://other.example", Owner: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return hasID(c.Snapshot(), rec.ID) })
	waitFor(t, func() bool { return store.Subscribers("u1") == 1 })
}
