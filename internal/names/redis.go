package names

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOpts struct {
	Addr, Password, Key string
	DB                  int
	Timeout             time.Duration
}

// LoadRedis reads the whole names hash once. Fields are MAC addresses, values labels.
func LoadRedis(ctx context.Context, o RedisOpts) (map[string]string, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	table, err := rdb.HGetAll(ctx, o.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", o.Key, err)
	}
	return table, nil
}
