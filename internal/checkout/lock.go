package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const tableLockTTL = 30 * time.Second

// TableLocker serializes capacity-sensitive checkouts per table. The
// capacity check is query-then-insert; without the lock two concurrent
// purchases of the last seats could both pass it.
type TableLocker interface {
	LockTable(ctx context.Context, tableID, orderToken string) (bool, error)
	UnlockTable(ctx context.Context, tableID, orderToken string) error
}

// RedisTableLock is the production TableLocker. The TTL bounds how long a
// crashed checkout can hold a table; releases are token-checked so one
// request never drops another's lock.
type RedisTableLock struct {
	Client *redis.Client
}

func NewRedisTableLock(client *redis.Client) *RedisTableLock {
	return &RedisTableLock{Client: client}
}

func tableLockKey(tableID string) string {
	return fmt.Sprintf("table_lock:%s", tableID)
}

func (r *RedisTableLock) LockTable(ctx context.Context, tableID, orderToken string) (bool, error) {
	return r.Client.SetNX(ctx, tableLockKey(tableID), orderToken, tableLockTTL).Result()
}

func (r *RedisTableLock) UnlockTable(ctx context.Context, tableID, orderToken string) error {
	key := tableLockKey(tableID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == orderToken {
		return r.Client.Del(ctx, key).Err()
	}
	return nil
}

// noopTableLock stands in when Redis is not configured (tests, single-node
// deployments where the database constraint alone is acceptable).
type noopTableLock struct{}

func (noopTableLock) LockTable(ctx context.Context, tableID, orderToken string) (bool, error) {
	return true, nil
}

func (noopTableLock) UnlockTable(ctx context.Context, tableID, orderToken string) error {
	return nil
}

// NoopTableLock returns a TableLocker that always grants.
func NoopTableLock() TableLocker {
	return noopTableLock{}
}
