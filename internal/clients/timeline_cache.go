package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/spacesedan/sentiscope/internal/processing"
	"golang.org/x/sync/singleflight"
)

// TimelineCache stores encoded timelines. ValkeyClient satisfies it.
type TimelineCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedSource is a read-through cache in front of another source. Cache
// failures fall through to the source; fetch errors are never cached.
// Concurrent misses for the same key share one upstream fetch.
type CachedSource struct {
	source processing.DocumentSource
	cache  TimelineCache
	ttl    time.Duration
	group  singleflight.Group
}

func NewCachedSource(source processing.DocumentSource, cache TimelineCache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: ttl}
}

func timelineKey(handle string, limit int, language string) string {
	return fmt.Sprintf("timeline:%s:%s:%d", language, handle, limit)
}

func (cs *CachedSource) Fetch(ctx context.Context, handle string, limit int, language string) ([]models.RawDocument, error) {
	key := timelineKey(handle, limit, language)

	if b, ok, err := cs.cache.Get(ctx, key); err != nil {
		slog.Warn("[CachedSource] Cache read failed, fetching from source",
			slog.String("key", key),
			slog.String("error", err.Error()))
	} else if ok {
		var docs []models.RawDocument
		err := json.Unmarshal(b, &docs)
		if err == nil {
			slog.Debug("[CachedSource] Cache hit", slog.String("key", key), slog.Int("count", len(docs)))
			return docs, nil
		}
		slog.Warn("[CachedSource] Discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	v, err, shared := cs.group.Do(key, func() (any, error) {
		return cs.fill(ctx, key, handle, limit, language)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("[CachedSource] Shared in-flight fetch", slog.String("key", key))
	}
	return slices.Clone(v.([]models.RawDocument)), nil
}

func (cs *CachedSource) fill(ctx context.Context, key, handle string, limit int, language string) ([]models.RawDocument, error) {
	docs, err := cs.source.Fetch(ctx, handle, limit, language)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(docs)
	if err != nil {
		slog.Warn("[CachedSource] Failed to encode timeline", slog.String("error", err.Error()))
		return docs, nil
	}
	if err := cs.cache.Set(ctx, key, b, cs.ttl); err != nil {
		slog.Warn("[CachedSource] Cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return docs, nil
}
