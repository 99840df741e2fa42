// Package middleware provides the HTTP middleware of the API server
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/asakaida/relcalc/internal/httputil"
)

// Limiter decides whether a client may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitRecorder receives rejected requests
type RateLimitRecorder interface {
	RecordRateLimited()
}

// Window is the span over which requests are counted
const Window = time.Minute

type visitor struct {
	hits     []time.Time
	lastSeen time.Time
}

// MemoryLimiter keeps a sliding log of request times per client in process
// memory. No client gets more than perMinute requests in any Window.
type MemoryLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	perMinute int
	now       func() time.Time
}

// NewMemoryLimiter creates a limiter allowing perMinute requests per
// sliding minute
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		now:       time.Now,
	}
}

// Allow implements Limiter. Rejected requests are not logged, so a client
// hammering the server regains access one Window after its last accepted
// request.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{}
		l.visitors[key] = v
	}
	v.lastSeen = now
	v.hits = trimBefore(v.hits, now.Add(-Window))
	if len(v.hits) >= l.perMinute {
		return false, nil
	}
	v.hits = append(v.hits, now)
	return true, nil
}

// trimBefore drops the entries at or before cutoff. hits is sorted.
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}

// Cleanup removes clients idle for longer than idle and returns how many
// were removed
func (l *MemoryLimiter) Cleanup(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RedisLimiter keeps the sliding log of each client in a Redis sorted set
// scored by request time, so every replica shares the same counts
type RedisLimiter struct {
	client    *redis.Client
	perMinute int64
	prefix    string
	logger    *zap.Logger
	now       func() time.Time
	seq       uint64
}

// NewRedisLimiter connects to the Redis server at url
func NewRedisLimiter(url string, perMinute int, logger *zap.Logger) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisLimiterWithClient(redis.NewClient(opts), perMinute, logger), nil
}

// NewRedisLimiterWithClient creates a limiter on an existing client
func NewRedisLimiterWithClient(client *redis.Client, perMinute int, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client:    client,
		perMinute: int64(perMinute),
		prefix:    "relcalc:ratelimit:",
		logger:    logger,
		now:       time.Now,
	}
}

// Allow implements Limiter. When Redis is unreachable the request is
// allowed and the error returned.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	redisKey := l.prefix + key
	cutoff := strconv.FormatInt(now.Add(-Window).UnixNano(), 10)
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(atomic.AddUint64(&l.seq, 1), 10)

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
		card = pipe.ZCard(ctx, redisKey)
		pipe.ZAdd(ctx, redisKey, &redis.Z{Score: float64(now.UnixNano()), Member: member})
		pipe.Expire(ctx, redisKey, 2*Window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("failed to count request: %w", err)
	}
	if card.Val() >= l.perMinute {
		// keep rejected requests out of the log
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return false, fmt.Errorf("failed to drop rejected request: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Ping checks the Redis connection
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// RateLimit rejects clients that exceed the limiter with 429
func RateLimit(limiter Limiter, recorder RateLimitRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	// an unreachable Redis fails every request, so log it at most every 10s
	warnings := &rate.Sometimes{Interval: 10 * time.Second}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				warnings.Do(func() {
					logger.Warn("rate limiter unavailable", zap.Error(err))
				})
			}
			if !allowed {
				if recorder != nil {
					recorder.RecordRateLimited()
				}
				logger.Info("rate limit exceeded",
					zap.String("client", key),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestID(r.Context())),
				)
				w.Header().Set("Retry-After", "60")
				httputil.WriteError(w, http.StatusTooManyRequests, httputil.CodeRateLimitExceeded, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
