// Package memory provides an in-process domain.RemoteStore with a live
// change feed. It backs dev mode and tests.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

// feedBuffer is the per-subscriber backlog; a subscriber that falls further
// behind is dropped and must resubscribe.
const feedBuffer = 256

// Op names a store operation for fault injection
type Op string

const (
	OpCreate    Op = "create"
	OpDelete    Op = "delete"
	OpList      Op = "list"
	OpSubscribe Op = "subscribe"
)

// Store keeps bookmarks in memory and fans change events out to
// per-owner subscribers.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.Bookmark // ID -> Bookmark
	subs    map[string]map[*subscription]struct{}
	faults  map[Op][]error
	now     func() time.Time
}

var _ domain.RemoteStore = (*Store)(nil)

// NewStore creates an empty memory store
func NewStore() *Store {
	return &Store{
		records: make(map[string]domain.Bookmark),
		subs:    make(map[string]map[*subscription]struct{}),
		faults:  make(map[Op][]error),
		now:     time.Now,
	}
}

// FailNext makes the next call of op return err. Calls queue up.
func (s *Store) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults[op] = append(s.faults[op], err)
}

func (s *Store) takeFaultLocked(op Op) error {
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return queue[0]
}

// CreateRecord stores a new bookmark and publishes an insert event
func (s *Store) CreateRecord(ctx context.Context, draft domain.Draft) (domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bookmark{}, err
	}
	if err := draft.Validate(); err != nil {
		return domain.Bookmark{}, err
	}
	if draft.Owner == "" {
		return domain.Bookmark{}, domain.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFaultLocked(OpCreate); err != nil {
		return domain.Bookmark{}, err
	}

	record := domain.Bookmark{
		ID:        uuid.NewString(),
		Owner:     draft.Owner,
		Title:     draft.Title,
		URL:       draft.URL,
		CreatedAt: s.now().UTC(),
	}
	s.records[record.ID] = record
	s.publishLocked(record.Owner, domain.ChangeEvent{Kind: domain.EventInsert, Record: record})

	return record, nil
}

// DeleteRecord removes a bookmark. Unknown IDs are ignored.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFaultLocked(OpDelete); err != nil {
		return err
	}

	record, ok := s.records[id]
	if !ok {
		return nil
	}
	delete(s.records, id)
	s.publishLocked(record.Owner, domain.ChangeEvent{Kind: domain.EventDelete, ID: id})

	return nil
}

// ListRecords returns every bookmark of owner, newest first
func (s *Store) ListRecords(ctx context.Context, owner string) ([]domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFaultLocked(OpList); err != nil {
		return nil, err
	}

	records := make([]domain.Bookmark, 0, len(s.records))
	for _, record := range s.records {
		if record.Owner == owner {
			records = append(records, record)
		}
	}
	slices.SortFunc(records, domain.Compare)
	return records, nil
}

// SubscribeChanges opens a change feed for owner
func (s *Store) SubscribeChanges(ctx context.Context, owner string) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFaultLocked(OpSubscribe); err != nil {
		return nil, err
	}

	sub := &subscription{
		store:  s,
		owner:  owner,
		events: make(chan domain.ChangeEvent, feedBuffer),
	}
	if s.subs[owner] == nil {
		s.subs[owner] = make(map[*subscription]struct{})
	}
	s.subs[owner][sub] = struct{}{}
	return sub, nil
}

// Count returns the number of stored bookmarks
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Subscribers returns the number of live subscriptions for owner
func (s *Store) Subscribers(owner string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.subs[owner])
}

// DropSubscribers ends every live subscription, as a broken connection would.
func (s *Store) DropSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for owner, subs := range s.subs {
		for sub := range subs {
			sub.closeLocked()
		}
		delete(s.subs, owner)
	}
}

// publishLocked delivers ev to owner's subscribers. s.mu must be held.
func (s *Store) publishLocked(owner string, ev domain.ChangeEvent) {
	for sub := range s.subs[owner] {
		select {
		case sub.events <- ev:
		default:
			// Too far behind; losing the feed is better than a silent gap.
			sub.closeLocked()
			delete(s.subs[owner], sub)
		}
	}
}

type subscription struct {
	store  *Store
	owner  string
	events chan domain.ChangeEvent
	closed bool // guarded by store.mu
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *subscription) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	s.closeLocked()
	delete(s.store.subs[s.owner], s)
	return nil
}

func (s *subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// ErrInjected is a ready-made error for FailNext
var ErrInjected = errors.New("injected failure")
