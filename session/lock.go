package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock is a best-effort leader lock on redis: whoever sets the key first owns
// it until the ttl runs out. It elects one sweeper per tick across instances.
type Lock struct {
	rdb   *redis.Client
	owner string
}

func NewLock(rdb *redis.Client) *Lock {
	host, _ := os.Hostname()
	return &Lock{rdb: rdb, owner: host + "/" + uuid.NewString()}
}

func lockKey(name string) string { return fmt.Sprintf("cabinet:lock:%s", name) }

// TryLock reports whether this instance holds name for the next ttl.
func (l *Lock) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey(name), l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", name, err)
	}
	return ok, nil
}
