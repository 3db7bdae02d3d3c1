package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

func nextEvent(t *testing.T, sub domain.Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return domain.ChangeEvent{}
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := store.CreateRecord(ctx, domain.Draft{Title: "first", URL: "https://one.example", Owner: "u1"})
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	second, err := store.CreateRecord(ctx, domain.Draft{Title: "second", URL: "https://two.example", Owner: "u1"})
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if _, err := store.CreateRecord(ctx, domain.Draft{Title: "other", URL: "https://x.example", Owner: "u2"}); err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}

	list, err := store.ListRecords(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("ListRecords() should return u1 records newest first, got %+v", list)
	}

	if err := store.DeleteRecord(ctx, first.ID); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if err := store.DeleteRecord(ctx, first.ID); err != nil {
		t.Errorf("DeleteRecord() of unknown id should succeed, got %v", err)
	}
	if store.Count() != 2 {
		t.Errorf("Count() = %v, want 2", store.Count())
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	store := NewStore()
	_, err := store.CreateRecord(context.Background(), domain.Draft{Title: "", URL: "https://x", Owner: "u1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("CreateRecord() error = %v, want ErrInvalidInput", err)
	}
}

func TestSubscriptionIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sub, err := store.SubscribeChanges(ctx, "u1")
	if err != nil {
		t.Fatalf("SubscribeChanges() error = %v", err)
	}
	defer sub.Close()

	if _, err := store.CreateRecord(ctx, domain.Draft{Title: "other", URL: "https://x", Owner: "u2"}); err != nil {
		t.Fatal(err)
	}
	mine, err := store.CreateRecord(ctx, domain.Draft{Title: "mine", URL: "https://y", Owner: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	ev := nextEvent(t, sub)
	if ev.Kind != domain.EventInsert || ev.Record.ID != mine.ID {
		t.Errorf("first event = %+v, want insert of %s", ev, mine.ID)
	}

	if err := store.DeleteRecord(ctx, mine.ID); err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, sub); ev.Kind != domain.EventDelete || ev.ID != mine.ID {
		t.Errorf("delete event = %+v", ev)
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	store := NewStore()
	sub, err := store.SubscribeChanges(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}

	if err := sub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("Events() should be closed")
	}
	if store.Subscribers("u1") != 0 {
		t.Errorf("Subscribers() = %v, want 0", store.Subscribers("u1"))
	}
}

func TestDropSubscribersClosesFeeds(t *testing.T) {
	store := NewStore()
	sub, err := store.SubscribeChanges(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}

	store.DropSubscribers()

	if _, ok := <-sub.Events(); ok {
		t.Error("Events() should be closed after DropSubscribers()")
	}
	if err := sub.Close(); err != nil {
		t.Errorf("Close() after drop error = %v", err)
	}
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.FailNext(OpCreate, ErrInjected)

	if _, err := store.CreateRecord(ctx, domain.Draft{Title: "a", URL: "https://a", Owner: "u1"}); !errors.Is(err, ErrInjected) {
		t.Errorf("CreateRecord() error = %v, want ErrInjected", err)
	}
	if _, err := store.CreateRecord(ctx, domain.Draft{Title: "a", URL: "https://a", Owner: "u1"}); err != nil {
		t.Errorf("fault should only apply once, got %v", err)
	}

	store.FailNext(OpSubscribe, ErrInjected)
	if _, err := store.SubscribeChanges(ctx, "u1"); !errors.Is(err, ErrInjected) {
		t.Errorf("SubscribeChanges() error = %v, want ErrInjected", err)
	}
}
