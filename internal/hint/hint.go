// Package hint implements the real-time wake channel over redis pub/sub.
// Hints are best-effort only: a lost hint delays delivery until the next
// periodic round, it never loses data.
package hint

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/beeroutine/haircareplus-sync/internal/common"
	"github.com/beeroutine/haircareplus-sync/internal/logging"
)

const channelPrefix = "sync:wake:"

// Channel names the pub/sub channel a role listens on.
func Channel(role common.Role) string {
	return channelPrefix + role.String()
}

// Publisher nudges devices of a role to sync sooner.
type Publisher struct {
	rdb    *redis.Client
	logger logging.Logger
}

func NewPublisher(rdb *redis.Client, logger logging.Logger) *Publisher {
	return &Publisher{rdb: rdb, logger: logger}
}

// Publish emits a wake hint for every listener of the role. Failures are
// logged and swallowed; correctness rests on the periodic loop.
func (p *Publisher) Publish(ctx context.Context, role common.Role) {
	if err := p.rdb.Publish(ctx, Channel(role), "1").Err(); err != nil {
		p.logger.Warn(ctx, "wake hint publish failed", "role", role.String(), "error", err)
	}
}

// Listener subscribes to the role's wake channel and invokes wake on every
// message.
type Listener struct {
	rdb    *redis.Client
	role   common.Role
	wake   func()
	logger logging.Logger
}

func NewListener(rdb *redis.Client, role common.Role, wake func(), logger logging.Logger) *Listener {
	return &Listener{rdb: rdb, role: role, wake: wake, logger: logger}
}

// Run blocks receiving hints until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	pubsub := l.rdb.Subscribe(ctx, Channel(l.role))
	defer func() { _ = pubsub.Close() }()

	l.logger.Info(ctx, "listening for wake hints", "channel", Channel(l.role))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			l.wake()
		}
	}
}
