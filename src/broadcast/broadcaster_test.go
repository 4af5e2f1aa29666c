package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricelink/src/logger"
	"pricelink/src/models"
)

// -----------------------------------------------------------------------------
// Test doubles
// -----------------------------------------------------------------------------

type fakeResolver struct {
	plans map[string]*models.MPlan
}

func (r *fakeResolver) ResolvePlan(apiKey string) *models.MPlan {
	return r.plans[apiKey]
}

// -----------------------------------------------------------------------------

type recordedEvent struct {
	Event   string
	Payload interface{}
}

type fakeChannel struct {
	mu     sync.Mutex
	events []recordedEvent
	failAt int // push index (1-based) that starts failing; 0 never fails
	closed int
}

func (c *fakeChannel) Push(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.events)+1 >= c.failAt {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, recordedEvent{Event: event, Payload: payload})
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *fakeChannel) recorded() []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]recordedEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// -----------------------------------------------------------------------------

func newTestBroadcaster() *Broadcaster {
	resolver := &fakeResolver{plans: map[string]*models.MPlan{
		"free-key":     {Name: "free", RequestsPerMinute: 60, MaxConnections: 1, MaxSymbols: 10},
		"business-key": {Name: "business", RequestsPerMinute: 600, MaxConnections: 5, MaxSymbols: 50},
	}}
	stream := models.MStreamConfig{
		KeepaliveSeconds: 15,
		DefaultSymbols:   []string{"BTC", "ETH"},
		DefaultFiat:      "USD",
	}
	return NewBroadcaster(resolver, stream, logger.NewLogger("ERROR", "test"))
}

// -----------------------------------------------------------------------------

func TestSubscribe_SendsHelloWithPlanAndDefaults(t *testing.T) {
	b := newTestBroadcaster()
	ch := &fakeChannel{}

	sub, err := b.Subscribe("free-key", nil, "", ch)
	require.NoError(t, err)
	require.Equal(t, []string{"BTC", "ETH"}, sub.Symbols)
	require.Equal(t, "USD", sub.Fiat)

	events := ch.recorded()
	require.Len(t, events, 1)
	require.Equal(t, models.EventHello, events[0].Event)

	hello := events[0].Payload.(models.MHelloEvent)
	require.True(t, hello.OK)
	require.Equal(t, "free", hello.Plan)
	require.Equal(t, "USD", hello.Fiat)
	require.Equal(t, []string{"BTC", "ETH"}, hello.Symbols)
	require.NotEmpty(t, hello.Ts)
}

// -----------------------------------------------------------------------------

func TestSubscribe_UnknownKeyIsUnauthorized(t *testing.T) {
	b := newTestBroadcaster()

	sub, err := b.Subscribe("no-such-key", nil, "", &fakeChannel{})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Nil(t, sub)
	require.Equal(t, 0, b.ActiveConnections())
}

// -----------------------------------------------------------------------------

func TestSubscribe_EnforcesConnectionCap(t *testing.T) {
	b := newTestBroadcaster()

	_, err := b.Subscribe("free-key", nil, "", &fakeChannel{})
	require.NoError(t, err)

	_, err = b.Subscribe("free-key", nil, "", &fakeChannel{})
	var tooMany *TooManyConnectionsError
	require.ErrorAs(t, err, &tooMany)
	require.Equal(t, 1, tooMany.Max)

	// A different key has its own cap.
	_, err = b.Subscribe("business-key", nil, "", &fakeChannel{})
	require.NoError(t, err)
	require.Equal(t, 2, b.ActiveConnections())
}

// -----------------------------------------------------------------------------

func TestSubscribe_CapIsExactUnderConcurrency(t *testing.T) {
	b := newTestBroadcaster()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Subscribe("business-key", nil, "", &fakeChannel{}); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, accepted)
	require.Equal(t, 5, b.ActiveConnections())
}

// -----------------------------------------------------------------------------

func TestClose_FreesTheSlotAndIsIdempotent(t *testing.T) {
	b := newTestBroadcaster()
	ch := &fakeChannel{}

	sub, err := b.Subscribe("free-key", nil, "", ch)
	require.NoError(t, err)

	sub.Close()
	sub.Close()
	require.True(t, sub.Closed())
	require.Equal(t, 1, ch.closeCount())
	require.Equal(t, 0, b.ActiveConnections())

	// The slot is free again.
	_, err = b.Subscribe("free-key", nil, "", &fakeChannel{})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------

func TestPublish_FiltersToRequestedSymbols(t *testing.T) {
	b := newTestBroadcaster()

	btcOnly := &fakeChannel{}
	_, err := b.Subscribe("free-key", []string{"BTC"}, "USD", btcOnly)
	require.NoError(t, err)

	both := &fakeChannel{}
	_, err = b.Subscribe("business-key", []string{"BTC", "ETH"}, "USD", both)
	require.NoError(t, err)

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	b.Publish("USD", ts, "coingecko", map[string]float64{"BTC": 50000, "ETH": 3000, "SOL": 150})

	events := btcOnly.recorded()
	require.Len(t, events, 2) // hello + price
	price := events[1].Payload.(models.MPriceEvent)
	require.Equal(t, models.EventPrice, events[1].Event)
	require.Equal(t, map[string]float64{"BTC": 50000}, price.Prices)
	require.Equal(t, "USD", price.Fiat)
	require.Equal(t, "coingecko", price.Source)
	require.Equal(t, ts, price.Ts)

	price = both.recorded()[1].Payload.(models.MPriceEvent)
	require.Equal(t, map[string]float64{"BTC": 50000, "ETH": 3000}, price.Prices)
}

// -----------------------------------------------------------------------------

func TestPublish_SkipsOtherFiats(t *testing.T) {
	b := newTestBroadcaster()

	eur := &fakeChannel{}
	_, err := b.Subscribe("free-key", []string{"BTC"}, "EUR", eur)
	require.NoError(t, err)

	b.Publish("USD", time.Now().UTC().Format(time.RFC3339Nano), "coingecko", map[string]float64{"BTC": 50000})

	require.Len(t, eur.recorded(), 1) // hello only
}

// -----------------------------------------------------------------------------

func TestPublish_FailedPushTearsDownOnlyThatSubscriber(t *testing.T) {
	b := newTestBroadcaster()

	dead := &fakeChannel{failAt: 2} // hello succeeds, first price push fails
	deadSub, err := b.Subscribe("free-key", []string{"BTC"}, "USD", dead)
	require.NoError(t, err)

	alive := &fakeChannel{}
	_, err = b.Subscribe("business-key", []string{"BTC"}, "USD", alive)
	require.NoError(t, err)

	b.Publish("USD", time.Now().UTC().Format(time.RFC3339Nano), "coingecko", map[string]float64{"BTC": 50000})

	require.True(t, deadSub.Closed())
	require.Equal(t, 1, dead.closeCount())
	require.Equal(t, 1, b.ActiveConnections())
	require.Len(t, alive.recorded(), 2)
}

// -----------------------------------------------------------------------------

func TestSnapshotRequested_UnionsPerFiat(t *testing.T) {
	b := newTestBroadcaster()

	_, err := b.Subscribe("free-key", []string{"ETH", "BTC"}, "USD", &fakeChannel{})
	require.NoError(t, err)
	_, err = b.Subscribe("business-key", []string{"BTC", "SOL"}, "USD", &fakeChannel{})
	require.NoError(t, err)
	_, err = b.Subscribe("business-key", []string{"BTC"}, "EUR", &fakeChannel{})
	require.NoError(t, err)

	requested := b.SnapshotRequested()
	require.Equal(t, map[string][]string{
		"USD": {"BTC", "ETH", "SOL"},
		"EUR": {"BTC"},
	}, requested)
}

// -----------------------------------------------------------------------------

func TestSnapshotRequested_EmptyWhenIdle(t *testing.T) {
	b := newTestBroadcaster()
	require.Empty(t, b.SnapshotRequested())
}

// -----------------------------------------------------------------------------

func TestBroadcastPing_ReachesEverySubscriber(t *testing.T) {
	b := newTestBroadcaster()

	a := &fakeChannel{}
	_, err := b.Subscribe("free-key", []string{"BTC"}, "USD", a)
	require.NoError(t, err)

	c := &fakeChannel{}
	_, err = b.Subscribe("business-key", []string{"ETH"}, "EUR", c)
	require.NoError(t, err)

	b.BroadcastPing()

	for _, ch := range []*fakeChannel{a, c} {
		events := ch.recorded()
		require.Len(t, events, 2)
		require.Equal(t, models.EventPing, events[1].Event)
		ping := events[1].Payload.(models.MPingEvent)
		require.True(t, ping.OK)
		require.NotEmpty(t, ping.Ts)
	}
}
