package redis

import (
	// Go Internal Packages
	"context"
	"fmt"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"

	// External Packages
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the lock only while it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock only while it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// DayLocker is a per-day run lock shared by every process using the same Redis.
// A live holder renews the lock every third of the TTL, so the TTL only bounds
// how long a crashed holder keeps the day.
type DayLocker struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

func NewDayLocker(client *redis.Client, logger *zap.Logger, ttl time.Duration) *DayLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &DayLocker{client: client, logger: logger, ttl: ttl}
}

func lockKey(day string) string {
	return fmt.Sprintf("pipeline:lock:%s", day)
}

// Lock claims day, failing with a Conflict error when another run holds it.
func (l *DayLocker) Lock(ctx context.Context, day string) (func(), error) {
	key := lockKey(day)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.E(errors.Internal, "acquire run lock", err)
	}
	if !ok {
		return nil, errors.RunInProgressErr(day)
	}

	stop, done := make(chan struct{}), make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	return func() {
		close(stop)
		<-done
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(unlockCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release run lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (l *DayLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := l.ttl / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.logger.Warn("failed to renew run lock", zap.String("key", key), zap.Error(err))
			continue
		}
		if n == 0 {
			l.logger.Error("run lock lost to another holder", zap.String("key", key))
			return
		}
	}
}
