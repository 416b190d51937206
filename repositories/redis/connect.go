package redis

import (
	// Go Internal Packages
	"context"

	// External Packages
	"github.com/redis/go-redis/v9"
)

// Connect connects to the redis db and returns the client.
func Connect(ctx context.Context, uri, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     uri,      // Redis server address
		Password: password, // Redis password
		DB:       db,
	})

	_, pingErr := rdb.Ping(ctx).Result()
	if pingErr != nil {
		return nil, pingErr
	}
	return rdb, nil
}
