package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"testing"
	"time"

	// Local Packages
	errors "tx-pipeline/errors"
	models "tx-pipeline/models"

	// External Packages
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestQuarantineSendAndClear(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	q := NewQuarantine(client, zap.NewNop())

	rejected := []models.Rejected{
		{Index: 3, Field: "amount", Reason: "negative", Raw: models.RawTransaction{"tx_id": "t3", "amount": json.Number("-1.50")}},
		{Index: 7, Field: "ts", Reason: "missing"},
	}
	require.NoError(t, q.Send(ctx, "2025-12-18", rejected))
	require.NoError(t, q.Send(ctx, "2025-12-18", nil))

	items, err := mr.List("quarantine:2025-12-18")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	got, err := q.Day(ctx, "2025-12-18")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Index)
	assert.Equal(t, "amount", got[0].Field)
	assert.Equal(t, json.Number("-1.50"), got[0].Raw["amount"])
	assert.Equal(t, "ts", got[1].Field)

	require.NoError(t, q.Clear(ctx, "2025-12-18"))
	assert.False(t, mr.Exists("quarantine:2025-12-18"))
}

func TestDayLockerExclusive(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	locker := NewDayLocker(client, zap.NewNop(), time.Minute)

	unlock, err := locker.Lock(ctx, "2025-12-18")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "2025-12-18")
	assert.Equal(t, errors.Conflict, errors.KindOf(err))

	// Other days are independent.
	unlockOther, err := locker.Lock(ctx, "2025-12-19")
	require.NoError(t, err)
	unlockOther()

	unlock()
	assert.False(t, mr.Exists(lockKey("2025-12-18")))

	unlock, err = locker.Lock(ctx, "2025-12-18")
	require.NoError(t, err)
	unlock()
}

func TestDayLockerUnlockKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	locker := NewDayLocker(client, zap.NewNop(), time.Second)

	unlock, err := locker.Lock(ctx, "2025-12-18")
	require.NoError(t, err)

	// The lock expires and another holder takes the day.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(lockKey("2025-12-18"), "someone-else"))

	unlock()
	val, err := mr.Get(lockKey("2025-12-18"))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestDayLockerRenewsWhileHeld(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	ttl := 300 * time.Millisecond
	locker := NewDayLocker(client, zap.NewNop(), ttl)
	key := lockKey("2025-12-18")

	unlock, err := locker.Lock(ctx, "2025-12-18")
	require.NoError(t, err)

	// Most of the TTL passes; the holder pushes expiry back out.
	mr.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(key) > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	mr.FastForward(250 * time.Millisecond)
	assert.True(t, mr.Exists(key))

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestDayLockerStopsRenewingForeignLock(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	ttl := 300 * time.Millisecond
	locker := NewDayLocker(client, zap.NewNop(), ttl)
	key := lockKey("2025-12-18")

	unlock, err := locker.Lock(ctx, "2025-12-18")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, mr.Set(key, "someone-else"))
	mr.SetTTL(key, 50*time.Millisecond)

	// Renewal never extends a lock carrying another token.
	time.Sleep(250 * time.Millisecond)
	assert.LessOrEqual(t, mr.TTL(key), 50*time.Millisecond)
}
