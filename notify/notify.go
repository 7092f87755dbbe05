// Package notify delivers "loan became overdue" events to whoever listens.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultOverdueChannel = "loans:overdue"

// LoanOverdue is published once per loan, when the sweep moves it to overdue.
type LoanOverdue struct {
	LoanID           string     `json:"loanId"`
	KeyID            string     `json:"keyId"`
	UserID           string     `json:"userId"`
	BorrowedAt       time.Time  `json:"borrowedAt"`
	ExpectedReturnAt *time.Time `json:"expectedReturnAt,omitempty"`
	OverdueAt        time.Time  `json:"overdueAt"`
}

// RedisPublisher fans events out on a redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultOverdueChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) PublishOverdue(ctx context.Context, ev LoanOverdue) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode overdue event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish overdue event: %w", err)
	}
	return nil
}

// Subscribe streams decoded events until ctx is done. Malformed payloads are skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan LoanOverdue, func() error) {
	sub := p.rdb.Subscribe(ctx, p.channel)
	out := make(chan LoanOverdue)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev LoanOverdue
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, sub.Close
}

// LogPublisher only logs; used when no redis channel is configured.
type LogPublisher struct{ Log *slog.Logger }

func (p LogPublisher) PublishOverdue(ctx context.Context, ev LoanOverdue) error {
	l := p.Log
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "loan overdue",
		"loan_id", ev.LoanID, "key_id", ev.KeyID, "user_id", ev.UserID,
		"expected_return_at", ev.ExpectedReturnAt)
	return nil
}
