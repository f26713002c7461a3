package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
)

type cachedProvider struct {
	inner  Provider
	rdb    redis.Cmdable
	ttl    time.Duration
	key    string
	logger *slog.Logger
}

// NewCachedProvider keeps snapshots from inner in redis for ttl.
// Redis failures fall through to inner rather than failing the request.
func NewCachedProvider(inner Provider, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) Provider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &cachedProvider{inner: inner, rdb: rdb, ttl: ttl, key: salonconfig.CacheKey, logger: logger}
}

func (p *cachedProvider) Snapshot(ctx context.Context) (salonconfig.Snapshot, error) {
	raw, err := p.rdb.Get(ctx, p.key).Bytes()
	switch {
	case err == nil:
		var snap salonconfig.Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			return snap, nil
		}
		p.logger.Warn("discarding unreadable cached salon config", "key", p.key)
	case !errors.Is(err, redis.Nil):
		p.logger.Warn("salon config cache read failed", "err", err)
	}

	snap, err := p.inner.Snapshot(ctx)
	if err != nil {
		return salonconfig.Snapshot{}, err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return snap, nil
	}
	if err := p.rdb.Set(ctx, p.key, body, p.ttl).Err(); err != nil {
		p.logger.Warn("salon config cache write failed", "err", err)
	}
	return snap, nil
}
