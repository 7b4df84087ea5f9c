package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"livequiz/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// FlowCache holds read snapshots of game flows. It is never the source of
// truth: writes always go to the store first.
type FlowCache interface {
	Get(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, bool)
	// Set stores flow unless the cache already holds a higher version.
	Set(ctx context.Context, flow *models.GameFlow)
	Delete(ctx context.Context, gameID uuid.UUID)
}

type NopFlowCache struct{}

func (NopFlowCache) Get(context.Context, uuid.UUID) (*models.GameFlow, bool) { return nil, false }
func (NopFlowCache) Set(context.Context, *models.GameFlow)                   {}
func (NopFlowCache) Delete(context.Context, uuid.UUID)                       {}

// MemoryFlowCache keeps snapshots in process, for single instance setups
// without Redis.
type MemoryFlowCache struct {
	mu    sync.Mutex
	flows map[uuid.UUID]*models.GameFlow
}

func NewMemoryFlowCache() *MemoryFlowCache {
	return &MemoryFlowCache{flows: make(map[uuid.UUID]*models.GameFlow)}
}

func (c *MemoryFlowCache) Get(_ context.Context, gameID uuid.UUID) (*models.GameFlow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	flow, ok := c.flows[gameID]
	if !ok {
		return nil, false
	}
	return flow.Clone(), true
}

func (c *MemoryFlowCache) Set(_ context.Context, flow *models.GameFlow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.flows[flow.GameID]; ok && cached.Version > flow.Version {
		return
	}
	c.flows[flow.GameID] = flow.Clone()
}

func (c *MemoryFlowCache) Delete(_ context.Context, gameID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flows, gameID)
}

// setIfNotOlder writes ARGV[1] unless the cached document carries a version
// above ARGV[2].
var setIfNotOlder = redis.NewScript(`
local cached = redis.call('GET', KEYS[1])
if cached then
	local ok, doc = pcall(cjson.decode, cached)
	if ok and type(doc) == 'table' and tonumber(doc['version']) and tonumber(doc['version']) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisFlowCache stores flows as JSON under game:<id>:flow.
type RedisFlowCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisFlowCache(client *redis.Client, ttl time.Duration) *RedisFlowCache {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisFlowCache{redis: client, ttl: ttl}
}

func flowKey(gameID uuid.UUID) string {
	return "game:" + gameID.String() + ":flow"
}

func (c *RedisFlowCache) Get(ctx context.Context, gameID uuid.UUID) (*models.GameFlow, bool) {
	data, err := c.redis.Get(ctx, flowKey(gameID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("game_id", gameID.String()).Msg("redis error reading game flow")
		}
		return nil, false
	}

	var flow models.GameFlow
	if err := json.Unmarshal(data, &flow); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to unmarshal cached game flow")
		return nil, false
	}
	return &flow, true
}

func (c *RedisFlowCache) Set(ctx context.Context, flow *models.GameFlow) {
	data, err := json.Marshal(flow)
	if err != nil {
		log.Warn().Err(err).Str("game_id", flow.GameID.String()).Msg("failed to marshal game flow")
		return
	}
	err = setIfNotOlder.Run(ctx, c.redis, []string{flowKey(flow.GameID)}, data, flow.Version, c.ttl.Milliseconds()).Err()
	if err != nil {
		log.Warn().Err(err).Str("game_id", flow.GameID.String()).Msg("failed to cache game flow")
	}
}

func (c *RedisFlowCache) Delete(ctx context.Context, gameID uuid.UUID) {
	if err := c.redis.Del(ctx, flowKey(gameID)).Err(); err != nil {
		log.Warn().Err(err).Str("game_id", gameID.String()).Msg("failed to evict cached game flow")
	}
}
