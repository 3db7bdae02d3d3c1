package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	StrategyIncremental = "incremental"
	StrategyRefetch     = "refetch"
)

type Config struct {
	ListenPort      string        // ex: "127.0.0.1:8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline, the stream excepted

	// Access control for the HTTP bridge (empty lists = passthrough)
	AllowedHosts    []string // Host headers accepted, "*.example.com" allowed
	AllowedCIDRS    []string // client IPs/CIDRs accepted
	TrustProxy      bool     // resolve client IP from proxy headers
	RateLimitBurst  int      // mutating requests per client before throttling
	RateLimitPerMin int      // refill rate per client

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store string // "redis" | "memory"

	// Sync core
	SyncStrategy          string        // "incremental" | "refetch"
	ResubscribeInitial    time.Duration // first wait after the change feed drops (ex: 500ms)
	ResubscribeMax        time.Duration // cap on the wait between resubscribe attempts (ex: 30s)
	ResubscribeThreshold  int           // consecutive failures before degrading to periodic refetch
	RefetchInterval       time.Duration // full refetch period while degraded (ex: 15s)
	Owner                 string        // optional, sign this owner in at startup
	ImportFile            string        // optional, homepage bookmarks.yaml imported on sign-in
	MutationTimeout       time.Duration // per-request deadline for HTTP-driven mutations
	StreamWriteTimeout    time.Duration // websocket write deadline
	StreamAllowedOrigins  []string      // websocket origin patterns (empty = same origin only)
	MetricsEnabled        bool          // expose /metrics
	RedisChannelHealthChk time.Duration // pubsub health check interval

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKSTASH_LISTEN_PORT", "127.0.0.1:8080"),
		ShutdownTimeout: mustDuration("LINKSTASH_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("LINKSTASH_REQUEST_TIMEOUT", 15*time.Second),

		AllowedHosts:    splitAndTrim(getenv("LINKSTASH_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    splitAndTrim(getenv("LINKSTASH_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("LINKSTASH_TRUST_PROXY", false),
		RateLimitBurst:  getenvInt("LINKSTASH_RATE_LIMIT_BURST", 30),
		RateLimitPerMin: getenvInt("LINKSTASH_RATE_LIMIT_PER_MIN", 120),

		// Logging
		LogLevel:  getenv("LINKSTASH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKSTASH_PRETTY_LOG", true),

		Store: oneOf("LINKSTASH_STORE", StoreRedis, StoreRedis, StoreMemory),

		// Sync core
		SyncStrategy:          oneOf("LINKSTASH_SYNC_STRATEGY", StrategyIncremental, StrategyIncremental, StrategyRefetch),
		ResubscribeInitial:    mustDuration("LINKSTASH_RESUBSCRIBE_INITIAL", 500*time.Millisecond),
		ResubscribeMax:        mustDuration("LINKSTASH_RESUBSCRIBE_MAX", 30*time.Second),
		ResubscribeThreshold:  getenvInt("LINKSTASH_RESUBSCRIBE_THRESHOLD", 5),
		RefetchInterval:       mustDuration("LINKSTASH_REFETCH_INTERVAL", 15*time.Second),
		Owner:                 getenv("LINKSTASH_OWNER", ""),
		ImportFile:            getenv("LINKSTASH_IMPORT_FILE", ""),
		MutationTimeout:       mustDuration("LINKSTASH_MUTATION_TIMEOUT", 10*time.Second),
		StreamWriteTimeout:    mustDuration("LINKSTASH_STREAM_WRITE_TIMEOUT", 5*time.Second),
		StreamAllowedOrigins:  splitAndTrim(getenv("LINKSTASH_STREAM_ALLOWED_ORIGINS", "")),
		MetricsEnabled:        mustBool("LINKSTASH_METRICS_ENABLED", true),
		RedisChannelHealthChk: mustDuration("LINKSTASH_REDIS_CHANNEL_HEALTH_CHECK", 30*time.Second),
	}

	if cfg.Store == StoreRedis {
		loadRedis(cfg)
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("LINKSTASH_REDIS_ADDR")
	cfg.RedisUser = getenv("LINKSTASH_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("LINKSTASH_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("LINKSTASH_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("LINKSTASH_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: LINKSTASH_REDIS_PASSWORD is required when LINKSTASH_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

// oneOf returns the lowercased value of key, panicking when it is set to
// something outside allowed.
func oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(getenv(key, def)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", ")))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
