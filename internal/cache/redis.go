// Package cache is an optional redis-backed read-model cache. Entries are
// advisory: the database stays authoritative, and every cached key is
// dropped as soon as its partition appears in the change feed.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dealflow/internal/config"
	"dealflow/internal/feed"
	"dealflow/internal/models"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns nil when the cache is disabled; callers treat a nil store
// as cache-off.
func New(cfg config.CacheConfig) *Store {
	if !cfg.Enabled {
		return nil
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.TTL,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// RunFeedInvalidator drops cached entries for every partition that shows
// up in the change feed, until ctx is done.
func (s *Store) RunFeedInvalidator(ctx context.Context, hub *feed.Hub, keyFor func(partition string) string, logger *zap.Logger) {
	events, cancel := hub.Subscribe(feed.PartitionAll)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			for _, key := range invalidationTargets(ev, keyFor) {
				if err := s.Delete(ctx, key); err != nil && logger != nil {
					logger.Warn("cache invalidation failed",
						zap.String("partition", ev.Partition),
						zap.String("key", key),
						zap.Error(err),
					)
				}
			}
		}
	}
}

// invalidationTargets lists the cache keys one feed event makes stale.
// Deal-partition events map straight to their stage key; stage-level
// events (probability or terminal-flag edits, reorders, deletions) affect
// the metrics of every stage row they carry.
func invalidationTargets(ev feed.Event, keyFor func(partition string) string) []string {
	if ev.Partition != models.PartitionStages {
		return []string{keyFor(ev.Partition)}
	}
	rows, err := ev.Rows()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(rows.Stages)+len(rows.DeletedStageIDs))
	for _, st := range rows.Stages {
		keys = append(keys, keyFor(st.ID))
	}
	for _, id := range rows.DeletedStageIDs {
		keys = append(keys, keyFor(id))
	}
	return keys
}
