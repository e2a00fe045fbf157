package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"faucet-gateway/faucet/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de saque em hashes Redis:
//
//	<prefix>:total             allowed / denied
//	<prefix>:outcome           "<operação>:<resultado>"
//	<prefix>:minute:<yyyymmddhhmm>  allowed / denied (com TTL)
//	<prefix>:asset:<mint>      allowed / denied (com TTL, opcional)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica apenas em chaves de série temporal / por ativo.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackAssets bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackAssets(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackAssets = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "faucet:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.ClaimEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed() {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
	if ev.Operation != "" {
		pipe.HIncrBy(ctx, s.prefix+":outcome", ev.Operation+":"+ev.Outcome, 1)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if s.trackAssets && !ev.Asset.IsZero() {
		assetKey := s.prefix + ":asset:" + ev.Asset.String()
		pipe.HIncrBy(ctx, assetKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, assetKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
