package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
	"github.com/Nicortesm/GamepassCopilot/internal/metrics"
)

const (
	redisMemoPrefix     = "gamepass:memo:"
	redisGenerationKey  = "gamepass:memo-generation"
	redisBackendTimeout = 2 * time.Second
	sharedCallTimeout   = 2 * time.Minute
)

// RedisMemoBackend shares memoized collaborator responses between processes.
type RedisMemoBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMemoBackend stores entries with ttl; zero keeps them until invalidated.
func NewRedisMemoBackend(client *redis.Client, ttl time.Duration) *RedisMemoBackend {
	return &RedisMemoBackend{client: client, ttl: ttl}
}

func (r *RedisMemoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisMemoPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisMemoBackend) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, redisMemoPrefix+key, value, r.ttl).Err()
}

// Generation returns the shared generation counter, zero when unset.
func (r *RedisMemoBackend) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.client.Get(ctx, redisGenerationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisMemoBackend) BumpGeneration(ctx context.Context) (uint64, error) {
	gen, err := r.client.Incr(ctx, redisGenerationKey).Result()
	if err != nil {
		return 0, err
	}
	return uint64(gen), nil
}

func (r *RedisMemoBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Memo caches successful collaborator responses keyed by function and query.
// Entries are JSON so the in-memory and Redis tiers hold the same bytes.
// Failed calls are never stored; concurrent identical calls share one execution.
type Memo struct {
	mu         sync.RWMutex
	entries    map[string][]byte
	generation uint64
	redis      *RedisMemoBackend
	group      singleflight.Group
	logger     *slog.Logger
}

func NewMemo(backend *RedisMemoBackend, logger *slog.Logger) *Memo {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memo{
		entries: make(map[string][]byte),
		redis:   backend,
		logger:  logger,
	}
	if backend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), redisBackendTimeout)
		defer cancel()
		gen, err := backend.Generation(ctx)
		if err != nil {
			logger.Warn("memo generation unavailable", slog.String("error", err.Error()))
		}
		m.generation = gen
	}
	return m
}

// Invalidate drops every in-memory entry and moves to a new generation so Redis
// entries written before the call are never read again.
func (m *Memo) Invalidate(ctx context.Context) {
	if m == nil {
		return
	}
	next := uint64(0)
	if m.redis != nil {
		gen, err := m.redis.BumpGeneration(ctx)
		if err != nil {
			m.logger.Warn("memo generation bump failed", slog.String("error", err.Error()))
		} else {
			next = gen
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if next <= m.generation {
		next = m.generation + 1
	}
	m.generation = next
	m.entries = make(map[string][]byte)
}

func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memo) scopedKey(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return strconv.FormatUint(m.generation, 10) + ":" + key
}

func (m *Memo) lookup(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	data, ok := m.entries[key]
	m.mu.RUnlock()
	if ok {
		return data, true
	}
	if m.redis == nil {
		return nil, false
	}
	rctx, cancel := context.WithTimeout(ctx, redisBackendTimeout)
	defer cancel()
	data, ok, err := m.redis.Get(rctx, key)
	if err != nil {
		m.logger.Warn("memo redis get failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	if ok {
		m.mu.Lock()
		m.entries[key] = data
		m.mu.Unlock()
	}
	return data, ok
}

func (m *Memo) store(ctx context.Context, key string, data []byte) {
	m.mu.Lock()
	// An Invalidate between call and store moved the generation; drop the result.
	if !strings.HasPrefix(key, strconv.FormatUint(m.generation, 10)+":") {
		m.mu.Unlock()
		return
	}
	m.entries[key] = data
	m.mu.Unlock()

	if m.redis == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisBackendTimeout)
	defer cancel()
	if err := m.redis.Set(rctx, key, data); err != nil {
		m.logger.Warn("memo redis set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// memoize returns the cached value for key or runs fn once and caches a success.
// A nil memo calls fn directly.
func memoize[T any](ctx context.Context, m *Memo, key string, fn func(context.Context) (T, error)) (T, error) {
	if m == nil {
		return fn(ctx)
	}
	scoped := m.scopedKey(key)
	if data, ok := m.lookup(ctx, scoped); ok {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.CacheHitsTotal.Inc()
			return cached, nil
		}
		m.logger.Warn("memo entry unreadable, recomputing", slog.String("key", scoped))
	}
	metrics.CacheMissesTotal.Inc()

	// The shared call outlives any single caller; each caller still stops waiting
	// when its own context ends.
	results := m.group.DoChan(scoped, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		result, err := fn(callCtx)
		if err != nil {
			return result, err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return result, fmt.Errorf("encode memo entry: %w", err)
		}
		m.store(callCtx, scoped, data)
		return result, nil
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func classifyKey(query string) string {
	return "classify:" + normalizeQuery(query)
}

// recommendKey includes the candidate titles so a different context never reuses
// an answer computed for another subset.
func recommendKey(query string, candidates []domain.Candidate) string {
	digest := xxhash.New()
	for _, c := range candidates {
		_, _ = digest.WriteString(c.Title)
		_, _ = digest.Write([]byte{0})
	}
	return "recommend:" + normalizeQuery(query) + ":" + strconv.FormatUint(digest.Sum64(), 16)
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
