package caching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// QuantityCache holds read-through copies of on-hand quantities. The ledger stays authoritative.
// Entries carry the record version they were read at and are only ever replaced by a newer one.
type QuantityCache interface {
	GetQuantity(ctx context.Context, variantID, storeID uuid.UUID) (int, bool, error)
	// SetQuantity is a no-op when the cached entry is at version or newer.
	SetQuantity(ctx context.Context, variantID, storeID uuid.UUID, quantity int, version int64) error
	DeleteQuantity(ctx context.Context, variantID, storeID uuid.UUID) error
	Ping(ctx context.Context) error
}

// setIfNewer stores "version:quantity" unless the key already holds a version >= ARGV[1].
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local sep = string.find(current, ':', 1, true)
	if sep then
		local cached = tonumber(string.sub(current, 1, sep - 1))
		if cached and cached >= tonumber(ARGV[1]) then
			return 0
		end
	end
end
local value = ARGV[1] .. ':' .. ARGV[2]
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], value, 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], value)
end
return 1
`)

type redisQuantityCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient parses addr, accepting a redis:// or rediss:// URL as well as host:port.
func NewRedisClient(addr, password string, db int, logger *zap.Logger) *redis.Client {
	parsedAddr := addr
	if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
		parsedAddr = hostPort
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("redis ping failed on initialization", zap.String("address", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("redis connection established", zap.String("address", parsedAddr))
	}
	return client
}

func NewRedisQuantityCache(client redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) QuantityCache {
	if prefix == "" {
		prefix = "stockflow"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisQuantityCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *redisQuantityCache) key(variantID, storeID uuid.UUID) string {
	return fmt.Sprintf("%s:inventory:%s:%s", r.prefix, storeID.String(), variantID.String())
}

// GetQuantity reports ok=false on a cache miss.
func (r *redisQuantityCache) GetQuantity(ctx context.Context, variantID, storeID uuid.UUID) (int, bool, error) {
	raw, err := r.client.Get(ctx, r.key(variantID, storeID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	quantity, _, err := decodeEntry(raw)
	if err != nil {
		r.logger.Warn("discarding malformed cached quantity", zap.String("value", raw))
		_ = r.client.Del(ctx, r.key(variantID, storeID)).Err()
		return 0, false, nil
	}
	return quantity, true, nil
}

func (r *redisQuantityCache) SetQuantity(ctx context.Context, variantID, storeID uuid.UUID, quantity int, version int64) error {
	key := r.key(variantID, storeID)
	return setIfNewer.Run(ctx, r.client, []string{key}, version, quantity, r.ttl.Milliseconds()).Err()
}

func decodeEntry(raw string) (int, int64, error) {
	versionPart, quantityPart, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, 0, fmt.Errorf("cache entry %q has no version", raw)
	}
	version, err := strconv.ParseInt(versionPart, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	quantity, err := strconv.Atoi(quantityPart)
	if err != nil {
		return 0, 0, err
	}
	return quantity, version, nil
}

func (r *redisQuantityCache) DeleteQuantity(ctx context.Context, variantID, storeID uuid.UUID) error {
	return r.client.Del(ctx, r.key(variantID, storeID)).Err()
}

func (r *redisQuantityCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type noopQuantityCache struct{}

// NewNoopQuantityCache is used when redis is disabled.
func NewNoopQuantityCache() QuantityCache {
	return noopQuantityCache{}
}

func (noopQuantityCache) GetQuantity(context.Context, uuid.UUID, uuid.UUID) (int, bool, error) {
	return 0, false, nil
}

func (noopQuantityCache) SetQuantity(context.Context, uuid.UUID, uuid.UUID, int, int64) error {
	return nil
}

func (noopQuantityCache) DeleteQuantity(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (noopQuantityCache) Ping(context.Context) error { return nil }
