package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/internal/credential/models"
	"certledger/internal/ledger"
)

const redisRecordKeyPrefix = "ledger:record:"

// RedisStore keeps anchor records in Redis with TTL eviction.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed RecordStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Find(ctx context.Context, fp models.Fingerprint) (ledger.AnchorRecord, bool, error) {
	data, err := s.client.Get(ctx, recordKey(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ledger.AnchorRecord{}, false, nil
		}
		return ledger.AnchorRecord{}, false, fmt.Errorf("find anchor record cache: %w", err)
	}
	var rec ledger.AnchorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ledger.AnchorRecord{}, false, fmt.Errorf("decode anchor record cache: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) Save(ctx context.Context, fp models.Fingerprint, rec ledger.AnchorRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode anchor record cache: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(fp), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save anchor record cache: %w", err)
	}
	return nil
}

func recordKey(fp models.Fingerprint) string {
	return redisRecordKeyPrefix + fp.String()
}

var _ RecordStore = (*RedisStore)(nil)
