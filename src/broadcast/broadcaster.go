package broadcast

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pricelink/src/interfaces"
	"pricelink/src/logger"
	"pricelink/src/models"
	"pricelink/src/validation"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrUnauthorized       = errors.New("unauthorized")
	errSubscriptionClosed = errors.New("subscription closed")
)

// TooManyConnectionsError is returned when a key is already at its plan's
// concurrent connection cap.
type TooManyConnectionsError struct {
	Max int
}

func (e *TooManyConnectionsError) Error() string {
	return fmt.Sprintf("too many connections (max %d)", e.Max)
}

// -----------------------------------------------------------------------------
// Broadcaster fans price and keepalive events out to every live
// subscription, enforcing the per-key connection cap at subscribe time and
// filtering each subscriber's view down to its requested symbols.
// -----------------------------------------------------------------------------

// subscriberList is the per-key bookkeeping. The list mutex is the atomic
// region for the cap check-and-register; removed marks a list that has
// been emptied and detached from the map, so a racing subscribe retries.
type subscriberList struct {
	mu      sync.Mutex
	subs    []*Subscription
	removed bool
}

// -----------------------------------------------------------------------------

type Broadcaster struct {
	Resolver interfaces.IPlanResolver
	Logger   *logger.Logger

	defaultSymbols []string
	defaultFiat    string

	mu    sync.RWMutex
	byKey map[string]*subscriberList
}

// -----------------------------------------------------------------------------

func NewBroadcaster(resolver interfaces.IPlanResolver, stream models.MStreamConfig, log *logger.Logger) *Broadcaster {
	defaults := validation.NormalizeSymbols(stream.DefaultSymbols)
	if len(defaults) == 0 {
		defaults = []string{"BTC", "ETH"}
	}
	fiat := validation.NormalizeFiat(stream.DefaultFiat)
	if fiat == "" {
		fiat = "USD"
	}

	return &Broadcaster{
		Resolver:       resolver,
		Logger:         log,
		defaultSymbols: defaults,
		defaultFiat:    fiat,
		byKey:          make(map[string]*subscriberList),
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers a new streaming connection for apiKey and pushes the
// hello event on it. The channel is transport-owned; the returned
// Subscription is the bookkeeping record, and closing it (from any code
// path) is the single cleanup primitive.
func (b *Broadcaster) Subscribe(apiKey string, symbols []string, fiat string, ch interfaces.ISubscriberChannel) (*Subscription, error) {
	plan := b.Resolver.ResolvePlan(apiKey)
	if plan == nil {
		// The transport layer should already have rejected this; keep
		// the check anyway so the broadcaster never trusts its caller.
		return nil, ErrUnauthorized
	}

	symSet := validation.NormalizeSymbols(symbols)
	if len(symSet) == 0 {
		symSet = append([]string(nil), b.defaultSymbols...)
	}

	f := validation.NormalizeFiat(fiat)
	if f == "" {
		f = b.defaultFiat
	}

	sub := &Subscription{
		Symbols:     symSet,
		Fiat:        f,
		apiKey:      apiKey,
		channel:     ch,
		symbolSet:   make(map[string]struct{}, len(symSet)),
		broadcaster: b,
	}
	for _, s := range symSet {
		sub.symbolSet[s] = struct{}{}
	}

	if err := b.register(apiKey, sub, plan.MaxConnections); err != nil {
		return nil, err
	}

	hello := models.MHelloEvent{
		OK:      true,
		Plan:    plan.Name,
		Fiat:    sub.Fiat,
		Symbols: sub.Symbols,
		Ts:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := sub.push(models.EventHello, hello); err != nil {
		// push already tore the record down; the connection was dead on
		// arrival and the transport will observe the closed channel.
		b.Logger.Warning("Hello push failed for key=%s: %v", apiKey, err)
	}

	return sub, nil
}

// -----------------------------------------------------------------------------

// register performs the cap check and the list insert inside one critical
// region per key, so two racing subscribes cannot both pass a stale count.
func (b *Broadcaster) register(apiKey string, sub *Subscription, maxConnections int) error {
	for {
		b.mu.Lock()
		list, ok := b.byKey[apiKey]
		if !ok {
			list = &subscriberList{}
			b.byKey[apiKey] = list
		}
		b.mu.Unlock()

		list.mu.Lock()
		if list.removed {
			// Lost a race with the last unsubscribe; the list is no
			// longer in the map. Retry against a live one.
			list.mu.Unlock()
			continue
		}
		if len(list.subs) >= maxConnections {
			list.mu.Unlock()
			return &TooManyConnectionsError{Max: maxConnections}
		}
		list.subs = append(list.subs, sub)
		list.mu.Unlock()
		return nil
	}
}

// -----------------------------------------------------------------------------

// remove deletes the record and drops the key's list entry once empty.
// Only ever called from Subscription.Close, which guarantees one call.
func (b *Broadcaster) remove(apiKey string, sub *Subscription) {
	b.mu.Lock()
	list, ok := b.byKey[apiKey]
	if !ok {
		b.mu.Unlock()
		return
	}

	list.mu.Lock()
	for i, s := range list.subs {
		if s == sub {
			list.subs = append(list.subs[:i], list.subs[i+1:]...)
			break
		}
	}
	if len(list.subs) == 0 {
		list.removed = true
		delete(b.byKey, apiKey)
	}
	list.mu.Unlock()
	b.mu.Unlock()
}

// -----------------------------------------------------------------------------

// snapshot copies the current subscription set so publish/keepalive can
// push outside any lock.
func (b *Broadcaster) snapshot() []*Subscription {
	b.mu.RLock()
	lists := make([]*subscriberList, 0, len(b.byKey))
	for _, list := range b.byKey {
		lists = append(lists, list)
	}
	b.mu.RUnlock()

	var out []*Subscription
	for _, list := range lists {
		list.mu.Lock()
		out = append(out, list.subs...)
		list.mu.Unlock()
	}
	return out
}

// -----------------------------------------------------------------------------

// SnapshotRequested returns fiat -> union of subscribed symbols, computed
// fresh from the live subscription set. Used by the poller to aggregate
// demand; nothing is persisted between calls.
func (b *Broadcaster) SnapshotRequested() map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, sub := range b.snapshot() {
		set, ok := sets[sub.Fiat]
		if !ok {
			set = make(map[string]struct{})
			sets[sub.Fiat] = set
		}
		for _, s := range sub.Symbols {
			set[s] = struct{}{}
		}
	}

	out := make(map[string][]string, len(sets))
	for fiat, set := range sets {
		symbols := make([]string, 0, len(set))
		for s := range set {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		out[fiat] = symbols
	}
	return out
}

// -----------------------------------------------------------------------------

// Publish pushes a price event to every subscription on the given fiat,
// each one seeing only the intersection of its requested symbols with the
// available prices. A failed push tears down that subscription only.
func (b *Broadcaster) Publish(fiat string, ts string, source string, pricesBySymbol map[string]float64) {
	f := validation.NormalizeFiat(fiat)

	for _, sub := range b.snapshot() {
		if sub.Fiat != f {
			continue
		}

		filtered := make(map[string]float64)
		for sym, price := range pricesBySymbol {
			if sub.wants(sym) {
				filtered[sym] = price
			}
		}

		event := models.MPriceEvent{
			Ts:     ts,
			Fiat:   f,
			Source: source,
			Prices: filtered,
		}
		if err := sub.push(models.EventPrice, event); err != nil {
			b.Logger.Debug("Dropped subscriber key=%s on price push: %v", sub.apiKey, err)
		}
	}
}

// -----------------------------------------------------------------------------

// BroadcastPing pushes a keepalive event to every live subscription.
// Exists to defeat idle-connection timeouts in proxies, carries no data.
func (b *Broadcaster) BroadcastPing() {
	ts := time.Now().UTC().Format(time.RFC3339Nano)

	for _, sub := range b.snapshot() {
		event := models.MPingEvent{OK: true, Ts: ts}
		if err := sub.push(models.EventPing, event); err != nil {
			b.Logger.Debug("Dropped subscriber key=%s on ping: %v", sub.apiKey, err)
		}
	}
}

// -----------------------------------------------------------------------------

// ActiveConnections returns the total live subscription count.
func (b *Broadcaster) ActiveConnections() int {
	return len(b.snapshot())
}
