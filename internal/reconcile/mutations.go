package reconcile

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

// Create shows a pending record immediately and submits it to the store.
//
// On success the pending record is replaced by the store's record, which
// is returned. On failure it is removed and the error wraps
// domain.ErrRemoteRejected. A record deleted while pending is never
// brought back.
func (s *Session) Create(ctx context.Context, title, url string) (domain.Bookmark, error) {
	draft := domain.Draft{Title: title, URL: url, Owner: s.owner}
	if err := draft.Validate(); err != nil {
		mutationsTotal.WithLabelValues("create", "invalid").Inc()
		return domain.Bookmark{}, err
	}

	p := &pendingCreate{
		temp: domain.Bookmark{
			ID:        s.opts.NewID(),
			Owner:     s.owner,
			Title:     title,
			URL:       url,
			CreatedAt: s.opts.Now().UTC(),
			Pending:   true,
		},
		done: make(chan struct{}),
	}

	if !s.loop.call(func() {
		s.pending[p.temp.ID] = p
		s.view.Insert(p.temp)
	}) {
		close(p.done)
		return domain.Bookmark{}, domain.ErrUnauthenticated
	}

	record, err := s.remote.CreateRecord(ctx, draft)
	p.record, p.err = record, err
	s.loop.call(func() { s.resolveCreate(p) })
	close(p.done)

	if err != nil {
		mutationsTotal.WithLabelValues("create", "rejected").Inc()
		s.log.Warn("create rejected, pending record removed",
			logger.String("temp_id", p.temp.ID),
			logger.Error(err))
		return domain.Bookmark{}, domain.RemoteRejected("create", err)
	}

	mutationsTotal.WithLabelValues("create", "ok").Inc()
	s.log.Debug("bookmark created",
		logger.String("temp_id", p.temp.ID),
		logger.String("id", record.ID))

	s.afterMutation()
	record.Pending = false
	return record, nil
}

// resolveCreate settles a pending record once the store has answered. Loop only.
func (s *Session) resolveCreate(p *pendingCreate) {
	p.resolved = true
	delete(s.pending, p.temp.ID)

	if p.err != nil {
		s.view.Remove(p.temp.ID)
		return
	}

	rec := p.record
	rec.Pending = false

	// Deleted while pending: hand the tombstones over to the real ID,
	// the waiting deletes release them.
	if n := s.tombstones[p.temp.ID]; n > 0 {
		s.tombstones[rec.ID] += n
		s.view.Remove(rec.ID)
		return
	}

	// The feed already reported this record as deleted.
	if s.recent.has(rec.ID) {
		s.view.Remove(p.temp.ID)
		s.view.Remove(rec.ID)
		return
	}

	if s.view.Replace(p.temp.ID, rec) {
		s.touch(rec.ID)
	}
}

// Delete removes a record from the view immediately and from the store.
//
// Deleting a pending record waits for its create to resolve and then
// deletes the store's record; if the create failed there is nothing left
// to delete. A rejected delete is reported but the record is not restored.
func (s *Session) Delete(ctx context.Context, id string) error {
	if id == "" {
		mutationsTotal.WithLabelValues("delete", "invalid").Inc()
		return fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}

	var p *pendingCreate
	if !s.loop.call(func() {
		s.tombstones[id]++
		s.view.Remove(id)
		p = s.pending[id]
	}) {
		return domain.ErrUnauthenticated
	}

	target := id
	if p != nil {
		select {
		case <-p.done:
		case <-ctx.Done():
			s.loop.call(func() {
				s.untombstone(id)
				if p.resolved && p.err == nil {
					s.untombstone(p.record.ID)
				}
			})
			mutationsTotal.WithLabelValues("delete", "canceled").Inc()
			return ctx.Err()
		case <-s.ctx.Done():
			return domain.ErrUnauthenticated
		}

		if p.err != nil {
			s.loop.call(func() { s.untombstone(id) })
			mutationsTotal.WithLabelValues("delete", "ok").Inc()
			return nil
		}
		target = p.record.ID
	}

	err := s.remote.DeleteRecord(ctx, target)
	s.loop.call(func() {
		s.untombstone(id)
		if target != id {
			s.untombstone(target)
		}
		if err == nil {
			s.recent.add(target)
		}
	})

	if err != nil {
		mutationsTotal.WithLabelValues("delete", "rejected").Inc()
		s.log.Warn("delete rejected",
			logger.String("id", target),
			logger.Error(err))
		return domain.RemoteRejected("delete", err)
	}

	mutationsTotal.WithLabelValues("delete", "ok").Inc()
	s.log.Debug("bookmark deleted", logger.String("id", target))

	s.afterMutation()
	return nil
}

func (s *Session) afterMutation() {
	if s.opts.Strategy != Refetch || s.closed() {
		return
	}
	if err := s.refetch("mutation"); err != nil {
		s.log.Warn("refetch after mutation failed", logger.Error(err))
	}
}
