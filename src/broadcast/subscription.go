package broadcast

import (
	"sync/atomic"

	"pricelink/src/interfaces"
)

// -----------------------------------------------------------------------------
// Subscription lifecycle: Open -> Active -> Closed. Open means registered
// and hello sent; Active means at least one price/ping push went out;
// Closed is terminal and entered exactly once no matter how many paths
// (disconnect, push failure, explicit close) race to it.
// -----------------------------------------------------------------------------

const (
	stateOpen int32 = iota
	stateActive
	stateClosed
)

// -----------------------------------------------------------------------------

type Subscription struct {
	Symbols []string
	Fiat    string

	apiKey      string
	channel     interfaces.ISubscriberChannel
	symbolSet   map[string]struct{}
	state       atomic.Int32
	broadcaster *Broadcaster
}

// -----------------------------------------------------------------------------

// wants reports whether the subscriber asked for this symbol.
func (s *Subscription) wants(symbol string) bool {
	_, ok := s.symbolSet[symbol]
	return ok
}

// -----------------------------------------------------------------------------

// push delivers one event and flips Open -> Active on first delivery.
// A push failure tears the subscription down.
func (s *Subscription) push(event string, payload interface{}) error {
	if s.state.Load() == stateClosed {
		return errSubscriptionClosed
	}

	if err := s.channel.Push(event, payload); err != nil {
		s.Close()
		return err
	}

	s.state.CompareAndSwap(stateOpen, stateActive)
	return nil
}

// -----------------------------------------------------------------------------

// Close transitions to Closed and removes the bookkeeping record.
// Idempotent: only the first caller performs the removal, every later or
// concurrent terminal signal is a no-op.
func (s *Subscription) Close() {
	if s.state.Swap(stateClosed) == stateClosed {
		return
	}

	s.broadcaster.remove(s.apiKey, s)
	s.channel.Close()
}

// -----------------------------------------------------------------------------

// Closed reports whether the terminal state has been reached.
func (s *Subscription) Closed() bool {
	return s.state.Load() == stateClosed
}
