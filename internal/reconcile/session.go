package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/index"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
	"github.com/MrSnakeDoc/linkstash/internal/scheduler"
)

// Session keeps one owner's view in sync with a RemoteStore.
//
// View changes, pending creates, tombstones and the recent-deletes set are
// only touched on the session loop. Remote calls run on the caller's
// goroutine (mutations) or on the listener goroutine, and hand their
// results back to the loop.
type Session struct {
	owner  string
	remote domain.RemoteStore
	opts   Options
	log    logger.Logger
	view   *index.View
	loop   *loop

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Serializes full listings so touched entries can be pruned safely.
	refetchMu sync.Mutex

	// Loop-owned
	pending    map[string]*pendingCreate // by temporary ID
	tombstones map[string]int            // IDs deleted locally, by in-flight delete count
	recent     *recentSet                // IDs known to be deleted remotely
	touched    map[string]uint64         // confirmed IDs, by seq of last change
	seq        uint64

	statusMu   sync.RWMutex
	subscribed bool
	degraded   bool
	poller     *scheduler.Poller
}

// pendingCreate tracks one optimistic record until the store answers.
// record and err are written before resolution and read after done.
type pendingCreate struct {
	temp     domain.Bookmark
	record   domain.Bookmark
	err      error
	resolved bool // loop-owned
	done     chan struct{}
}

// Status describes the sync state of a session.
type Status struct {
	Owner       string    `json:"owner"`
	Strategy    Strategy  `json:"strategy"`
	Subscribed  bool      `json:"subscribed"`
	Degraded    bool      `json:"degraded"`
	Records     int       `json:"records"`
	LastRefetch time.Time `json:"last_refetch"`
}

func newSession(remote domain.RemoteStore, owner string, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		owner:      owner,
		remote:     remote,
		opts:       opts,
		log:        opts.Logger.With(logger.String("owner", owner)),
		view:       index.NewView(),
		loop:       newLoop(),
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[string]*pendingCreate),
		tombstones: make(map[string]int),
		recent:     newRecentSet(opts.RecentDeletes),
		touched:    make(map[string]uint64),
	}
}

// start subscribes, loads the initial listing and starts the listener.
// A failed subscription is retried in the background; a failed listing
// fails the sign-in.
func (s *Session) start(ctx context.Context) error {
	sub, err := s.remote.SubscribeChanges(ctx, s.owner)
	if err != nil {
		s.log.Warn("initial change feed subscription failed, retrying in background",
			logger.Error(err))
		sub = nil
	}

	records, err := s.remote.ListRecords(ctx, s.owner)
	if err != nil {
		refetchesTotal.WithLabelValues("initial", "error").Inc()
		if sub != nil {
			_ = sub.Close()
		}
		return domain.RemoteRejected("list", err)
	}
	refetchesTotal.WithLabelValues("initial", "ok").Inc()

	s.loop.call(func() { s.applyListing(records, 0) })
	s.setSubscribed(sub != nil)

	s.log.Info("session started",
		logger.Int("records", len(records)),
		logger.String("strategy", string(s.opts.Strategy)))

	s.wg.Add(1)
	go s.listen(sub)
	return nil
}

// Owner returns the signed-in user
func (s *Session) Owner() string { return s.owner }

// Snapshot returns the current view, newest first
func (s *Session) Snapshot() []domain.Bookmark { return s.view.Snapshot() }

// Watch streams view snapshots until cancel is called or the session closes.
func (s *Session) Watch() (<-chan []domain.Bookmark, func()) { return s.view.Watch() }

// Status reports the current sync state
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	return Status{
		Owner:       s.owner,
		Strategy:    s.opts.Strategy,
		Subscribed:  s.subscribed,
		Degraded:    s.degraded,
		Records:     s.view.Len(),
		LastRefetch: s.view.LastReset(),
	}
}

// Close tears the session down: the listener and poller stop, the
// subscription is disposed and the view is emptied. Mutations that
// complete afterwards change nothing. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.leaveDegraded()
		s.wg.Wait()
		s.loop.stop()
		s.view.Close()
		s.setSubscribed(false)
		s.log.Info("session closed")
	})
}

// Refresh asks for a full refetch. While degraded the request is handed
// to the refetch poller, merged with any run already queued, and Refresh
// returns at once with queued set. Otherwise the refetch runs before
// Refresh returns.
func (s *Session) Refresh() (queued bool, err error) {
	if s.closed() {
		return false, domain.ErrUnauthenticated
	}

	s.statusMu.RLock()
	p := s.poller
	s.statusMu.RUnlock()

	if p != nil {
		p.Trigger()
		return true, nil
	}
	return false, s.refetch("manual")
}

func (s *Session) closed() bool { return s.ctx.Err() != nil }

// refetch replaces the view with a full listing from the store.
func (s *Session) refetch(reason string) error {
	s.refetchMu.Lock()
	defer s.refetchMu.Unlock()

	var since uint64
	if !s.loop.call(func() { since = s.seq }) {
		return domain.ErrUnauthenticated
	}

	records, err := s.remote.ListRecords(s.ctx, s.owner)
	if err != nil {
		refetchesTotal.WithLabelValues(reason, "error").Inc()
		return domain.RemoteRejected("list", err)
	}
	refetchesTotal.WithLabelValues(reason, "ok").Inc()

	s.loop.call(func() { s.applyListing(records, since) })
	return nil
}

// applyListing resets the view to records, minus anything deleted locally
// or remotely, plus still-pending optimistic records and records confirmed
// after seq since. Loop only.
func (s *Session) applyListing(records []domain.Bookmark, since uint64) {
	merged := make([]domain.Bookmark, 0, len(records)+len(s.pending))
	listed := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if s.hidden(rec.ID) {
			continue
		}
		rec.Pending = false
		listed[rec.ID] = struct{}{}
		merged = append(merged, rec)
	}

	for id, at := range s.touched {
		if at <= since {
			delete(s.touched, id)
			continue
		}
		if _, ok := listed[id]; ok || s.hidden(id) {
			continue
		}
		if rec, ok := s.view.Get(id); ok {
			merged = append(merged, rec)
		}
	}

	for _, p := range s.pending {
		if s.tombstones[p.temp.ID] > 0 {
			continue
		}
		merged = append(merged, p.temp)
	}

	s.view.Reset(merged)
}

// hidden reports whether id must not appear in the view. Loop only.
func (s *Session) hidden(id string) bool {
	return s.tombstones[id] > 0 || s.recent.has(id)
}

// touch records that id was confirmed into the view. Loop only.
func (s *Session) touch(id string) {
	s.seq++
	s.touched[id] = s.seq
}

func (s *Session) untombstone(id string) {
	if s.tombstones[id] <= 1 {
		delete(s.tombstones, id)
		return
	}
	s.tombstones[id]--
}

func (s *Session) setSubscribed(v bool) {
	s.statusMu.Lock()
	s.subscribed = v
	s.statusMu.Unlock()
}

func (s *Session) report(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
		return
	}
	s.log.Error("sync error", logger.Error(err))
}
