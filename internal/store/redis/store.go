package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

// Store is a domain.RemoteStore backed by Redis.
//
// Records are JSON strings, each owner has a sorted set of IDs scored by
// creation time, and every mutation is published on the owner's change
// channel inside the same MULTI/EXEC transaction.
type Store struct {
	client      *redis.Client
	healthCheck time.Duration
	now         func() time.Time
}

var _ domain.RemoteStore = (*Store)(nil)

// NewStore creates a new Redis store. healthCheck is the Pub/Sub ping
// interval used by change feed subscriptions (0 keeps the go-redis default).
func NewStore(client *redis.Client, healthCheck time.Duration) *Store {
	return &Store{
		client:      client,
		healthCheck: healthCheck,
		now:         time.Now,
	}
}

// CreateRecord stores a new bookmark and publishes an insert event
func (s *Store) CreateRecord(ctx context.Context, draft domain.Draft) (domain.Bookmark, error) {
	if err := draft.Validate(); err != nil {
		return domain.Bookmark{}, err
	}
	if draft.Owner == "" {
		return domain.Bookmark{}, domain.ErrUnauthenticated
	}

	record := domain.Bookmark{
		ID:        uuid.NewString(),
		Owner:     draft.Owner,
		Title:     draft.Title,
		URL:       draft.URL,
		CreatedAt: s.now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to marshal bookmark: %w", err)
	}
	event, err := encodeEvent(domain.ChangeEvent{Kind: domain.EventInsert, Record: record})
	if err != nil {
		return domain.Bookmark{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(record.ID), data, 0)
		pipe.ZAdd(ctx, OwnerIndexKey(record.Owner), redis.Z{
			Score:  float64(record.CreatedAt.UnixMilli()),
			Member: record.ID,
		})
		pipe.Publish(ctx, ChangesChannel(record.Owner), event)
		return nil
	})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to save bookmark: %w", err)
	}

	return record, nil
}

// GetRecord retrieves a bookmark by ID
func (s *Store) GetRecord(ctx context.Context, id string) (domain.Bookmark, error) {
	data, err := s.client.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bookmark{}, fmt.Errorf("bookmark %s: %w", id, domain.ErrNotFound)
		}
		return domain.Bookmark{}, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var record domain.Bookmark
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return record, nil
}

// DeleteRecord removes a bookmark and publishes a delete event.
// Unknown IDs are ignored.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	event, err := encodeEvent(domain.ChangeEvent{Kind: domain.EventDelete, ID: id})
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, BookmarkKey(id))
		pipe.ZRem(ctx, OwnerIndexKey(record.Owner), id)
		pipe.Publish(ctx, ChangesChannel(record.Owner), event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// ListRecords retrieves every bookmark of owner, newest first
func (s *Store) ListRecords(ctx context.Context, owner string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, OwnerIndexKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}

	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	records := make([]domain.Bookmark, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a record (deleted concurrently)
			continue
		}
		var record domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, record)
	}

	// Scores are millisecond precision; settle ties the same way the view does.
	slices.SortFunc(records, domain.Compare)

	return records, nil
}
