package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

const feedBuffer = 64

// SubscribeChanges opens the owner's change feed on Redis Pub/Sub.
// It returns once Redis has confirmed the subscription.
func (s *Store) SubscribeChanges(ctx context.Context, owner string) (domain.Subscription, error) {
	ps := s.client.Subscribe(ctx, ChangesChannel(owner))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	var opts []redis.ChannelOption
	if s.healthCheck > 0 {
		opts = append(opts, redis.WithChannelHealthCheckInterval(s.healthCheck))
	}

	sub := &subscription{
		ps:     ps,
		events: make(chan domain.ChangeEvent, feedBuffer),
		done:   make(chan struct{}),
	}
	go sub.pump(ps.ChannelWithSubscriptions(opts...))
	return sub, nil
}

// subscription adapts a go-redis PubSub to domain.Subscription
type subscription struct {
	ps     *redis.PubSub
	events chan domain.ChangeEvent
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}

// pump forwards decoded events until the feed ends.
//
// go-redis reconnects and resubscribes by itself after a connection drop,
// so the channel stays open. The subscription confirmation it then sends
// is the only sign of the drop, and messages published in between are
// gone: the feed is ended so the listener resubscribes and refetches.
func (s *subscription) pump(msgs <-chan any) {
	defer close(s.events)
	for {
		select {
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			var msg *redis.Message
			switch m := raw.(type) {
			case *redis.Subscription:
				return
			case *redis.Message:
				msg = m
			default:
				continue
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				// Foreign publisher on our channel; nothing to reconcile.
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func encodeEvent(ev domain.ChangeEvent) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal change event: %w", err)
	}
	return string(data), nil
}

func decodeEvent(payload string) (domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	switch ev.Kind {
	case domain.EventInsert, domain.EventUpdate:
		if ev.Record.ID == "" {
			return ev, fmt.Errorf("change event %s without record", ev.Kind)
		}
	case domain.EventDelete:
		if ev.ID == "" {
			return ev, fmt.Errorf("delete event without id")
		}
	default:
		return ev, fmt.Errorf("unknown change event kind %q", ev.Kind)
	}
	return ev, nil
}
