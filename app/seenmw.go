package app

import (
	"context"
	"log/slog"
	"time"

	"cabinetkey/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const lastSeenPrefix = "cabinet:lastseen:"

// TouchLastSeen stamps users.last_seen_at after a request that did not fail on
// the server side, at most once per throttle window per user.
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, logger *slog.Logger, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		id, ok := IdentityFrom(c)
		if !ok || c.Writer.Status() >= 500 {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), time.Second)
		defer cancel()

		first, err := rdb.SetNX(ctx, lastSeenPrefix+id.UserID, "1", throttle).Result()
		if err != nil {
			logger.Debug("last seen throttle", "user", id.UserID, "err", err)
			return
		}
		if !first {
			return
		}
		// 失败只记日志，不影响响应
		if err := repo.TouchUserSeen(ctx, id.UserID); err != nil {
			logger.Warn("touch last seen", "user", id.UserID, "err", err)
		}
	}
}
