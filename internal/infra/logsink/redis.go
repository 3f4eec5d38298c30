package logsink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const streamKey = "nodewarden:checks"

// RedisConfig holds redis connection settings for the stream sink.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// MaxEntries caps the stream length (approximate trim). 0 keeps the
	// default retention of 100k records.
	MaxEntries int64 `yaml:"max_entries"`
}

// RedisSink appends check records to a capped redis stream, one entry per
// check, for shipping into an external log pipeline.
type RedisSink struct {
	rdb    *redis.Client
	maxLen int64
}

// NewRedisSink connects to redis and verifies the connection.
func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	maxLen := cfg.MaxEntries
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &RedisSink{rdb: rdb, maxLen: maxLen}, nil
}

func (s *RedisSink) Write(ctx context.Context, e Entry) error {
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"name":    e.Name,
			"level":   string(e.Level),
			"message": e.Message,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd check record: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
