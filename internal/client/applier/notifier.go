package applier

import (
	"github.com/beeroutine/haircareplus-sync/internal/client/models"
	"github.com/beeroutine/haircareplus-sync/internal/common"
)

// Event is emitted after a record is merged into local storage, keyed by
// entity kind so the UI layer can refresh reactively.
type Event struct {
	Kind   common.EntityKind
	Record models.LocalRecord
}

// Notifier is the notification port injected into the applier. It decouples
// the engine from any particular UI messaging mechanism.
type Notifier interface {
	Publish(event Event)
}

// ChanNotifier fans events out over a buffered channel. Publish never blocks
// the applier: when the consumer lags, the newest event is dropped. The
// notification is a refresh hint, not a delivery guarantee.
type ChanNotifier struct {
	events chan Event
}

// NewChanNotifier returns a notifier with the given buffer size.
func NewChanNotifier(buffer int) *ChanNotifier {
	return &ChanNotifier{events: make(chan Event, buffer)}
}

func (n *ChanNotifier) Publish(event Event) {
	select {
	case n.events <- event:
	default:
	}
}

// Events exposes the stream for the consumer.
func (n *ChanNotifier) Events() <-chan Event {
	return n.events
}

// NopNotifier discards events, for headless use and tests.
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}
