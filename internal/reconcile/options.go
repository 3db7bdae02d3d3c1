package reconcile

import (
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

// Strategy selects how the change feed is applied to the view.
type Strategy string

const (
	// Incremental applies each feed event to the view.
	Incremental Strategy = "incremental"
	// Refetch replaces the view with a full listing after every event
	// and every resolved local mutation.
	Refetch Strategy = "refetch"
)

const (
	defaultResubscribeInitial   = 500 * time.Millisecond
	defaultResubscribeMax       = 30 * time.Second
	defaultResubscribeThreshold = 5
	defaultRefetchInterval      = 15 * time.Second
	defaultRecentDeletes        = 1024
)

// Options tunes a session. Zero values get defaults.
type Options struct {
	Strategy Strategy

	// Resubscribe backoff after the change feed drops
	ResubscribeInitial time.Duration
	ResubscribeMax     time.Duration

	// ResubscribeThreshold is the number of consecutive failed
	// subscription attempts before the session degrades to periodic
	// refetching.
	ResubscribeThreshold int
	RefetchInterval      time.Duration

	// RecentDeletes bounds how many remotely deleted IDs are remembered
	// to settle creates that resolve after their delete event.
	RecentDeletes int

	// OnError receives errors that have no caller to return to,
	// such as domain.ErrSubscriptionLost. Called off the event loop.
	OnError func(error)

	Logger logger.Logger

	Now   func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = Incremental
	}
	if o.ResubscribeInitial <= 0 {
		o.ResubscribeInitial = defaultResubscribeInitial
	}
	if o.ResubscribeMax <= 0 {
		o.ResubscribeMax = defaultResubscribeMax
	}
	if o.ResubscribeMax < o.ResubscribeInitial {
		o.ResubscribeMax = o.ResubscribeInitial
	}
	if o.ResubscribeThreshold <= 0 {
		o.ResubscribeThreshold = defaultResubscribeThreshold
	}
	if o.RefetchInterval <= 0 {
		o.RefetchInterval = defaultRefetchInterval
	}
	if o.RecentDeletes <= 0 {
		o.RecentDeletes = defaultRecentDeletes
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = domain.NewTempID
	}
	return o
}
