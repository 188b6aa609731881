// Package transport carries one batch sync exchange to the relay server.
package transport

import (
	"context"

	"github.com/beeroutine/haircareplus-sync/internal/syncmsg"
)

// Transport performs the single request/response exchange of a round.
// Implementations must not mutate any local state: on failure the caller
// aborts the round and retries later.
type Transport interface {
	Sync(ctx context.Context, req *syncmsg.Request) (*syncmsg.Response, error)
	Close() error
}
