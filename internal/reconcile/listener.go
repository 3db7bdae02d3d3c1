package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
	"github.com/MrSnakeDoc/linkstash/internal/scheduler"
)

// listen consumes the change feed until the session closes, resubscribing
// with exponential backoff whenever the feed drops. sub may be nil when
// the initial subscription failed.
func (s *Session) listen(sub domain.Subscription) {
	defer s.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.ResubscribeInitial
	bo.MaxInterval = s.opts.ResubscribeMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	// Events may have been missed whenever we were not subscribed.
	gap := sub == nil
	failures := 0

	for {
		if sub == nil {
			var err error
			sub, err = s.remote.SubscribeChanges(s.ctx, s.owner)
			if err != nil {
				if s.closed() {
					return
				}
				failures++
				s.log.Warn("change feed subscription failed",
					logger.Int("attempt", failures),
					logger.Error(err))
				if failures == s.opts.ResubscribeThreshold {
					s.enterDegraded(fmt.Errorf("%w: %d attempts: %w",
						domain.ErrSubscriptionLost, failures, err))
				}
				if !s.sleep(bo.NextBackOff()) {
					return
				}
				continue
			}
			if failures > 0 {
				s.log.Info("change feed resubscribed", logger.Int("attempts", failures+1))
			}
			failures = 0
			bo.Reset()
			if s.leaveDegraded() {
				s.log.Info("change feed restored, periodic refetch stopped")
			}
		}

		s.setSubscribed(true)
		if gap {
			if err := s.refetch("resubscribe"); err != nil {
				s.log.Warn("refetch after resubscribe failed", logger.Error(err))
			}
		}

		s.consume(sub)
		_ = sub.Close()
		sub = nil
		s.setSubscribed(false)

		if s.closed() {
			return
		}
		resubscribesTotal.Inc()
		s.log.Warn("change feed lost, resubscribing")
		gap = true
	}
}

func (s *Session) consume(sub domain.Subscription) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.handleEvent(ev)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handleEvent(ev domain.ChangeEvent) {
	if s.opts.Strategy == Refetch {
		// Deletes are still remembered so a create resolving later
		// does not resurrect the record.
		if ev.Kind == domain.EventDelete {
			id := ev.TargetID()
			s.loop.call(func() { s.recent.add(id) })
		}
		outcome := "refetched"
		if err := s.refetch("event"); err != nil {
			outcome = "error"
			s.log.Warn("refetch after change event failed", logger.Error(err))
		}
		feedEventsTotal.WithLabelValues(string(ev.Kind), outcome).Inc()
		return
	}

	var outcome string
	if !s.loop.call(func() { outcome = s.applyEvent(ev) }) {
		return
	}
	feedEventsTotal.WithLabelValues(string(ev.Kind), outcome).Inc()
}

// applyEvent merges one change event into the view and returns how it
// was handled. Loop only.
func (s *Session) applyEvent(ev domain.ChangeEvent) string {
	switch ev.Kind {
	case domain.EventInsert, domain.EventUpdate:
		rec := ev.Record
		switch {
		case rec.ID == "":
			return "invalid"
		case rec.Owner != "" && rec.Owner != s.owner:
			return "foreign"
		case s.hidden(rec.ID):
			return "suppressed"
		}
		rec.Pending = false
		s.view.Upsert(rec)
		s.touch(rec.ID)
		return "applied"

	case domain.EventDelete:
		id := ev.TargetID()
		if id == "" {
			return "invalid"
		}
		s.recent.add(id)
		delete(s.touched, id)
		if s.view.Remove(id) {
			return "applied"
		}
		return "noop"
	}
	return "invalid"
}

// enterDegraded starts periodic refetching and reports err once.
func (s *Session) enterDegraded(err error) {
	s.statusMu.Lock()
	if s.degraded || s.closed() {
		s.statusMu.Unlock()
		return
	}
	s.degraded = true
	s.poller = scheduler.NewPoller("refetch", func(context.Context) error {
		return s.refetch("degraded")
	}, s.log, s.opts.RefetchInterval)
	s.poller.Start(s.ctx)
	s.statusMu.Unlock()

	degradedSessions.Inc()
	s.log.Error("change feed unavailable, falling back to periodic refetch",
		logger.Duration("interval", s.opts.RefetchInterval),
		logger.Error(err))
	s.report(err)
}

// leaveDegraded stops periodic refetching. It reports whether the
// session was degraded.
func (s *Session) leaveDegraded() bool {
	s.statusMu.Lock()
	p := s.poller
	was := s.degraded
	s.poller = nil
	s.degraded = false
	s.statusMu.Unlock()

	if p != nil {
		p.Stop()
	}
	if was {
		degradedSessions.Dec()
	}
	return was
}

func (s *Session) sleep(d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
