package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkstash/internal/logger"
	"github.com/MrSnakeDoc/linkstash/internal/reconcile"
	"github.com/MrSnakeDoc/linkstash/internal/sources/homepage"
)

type Deps struct {
	Logger               logger.Logger
	StartTime            time.Time
	Version              string
	Commit               string
	BuildDate            string
	GoVersion            string
	TimeNow              func() time.Time    // for testing, defaults to time.Now
	AllowedHosts         []string            // Host headers allowed to access the server
	AllowedCIDRS         []string            // IPs allowed to access the API
	TrustProxy           bool                // true if running behind a trusted reverse proxy
	RateLimitBurst       int                 // mutating requests allowed per client before throttling
	RateLimitPerMin      int                 // refill rate for the above
	RequestTimeout       time.Duration       // deadline for every route except the stream
	MutationTimeout      time.Duration       // deadline for a create or delete round trip
	StreamWriteTimeout   time.Duration       // websocket write deadline
	StreamAllowedOrigins []string            // websocket origin patterns
	MetricsEnabled       bool                // expose /metrics
	Client               *reconcile.Client   // sync core, owns the signed-in session
	Importer             *homepage.Importer  // nil when no import file is configured
	RedisClient          *redis.Client       // nil with the memory store
}
