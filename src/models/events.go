package models

// -----------------------------------------------------------------------------
// Stream event payloads
// -----------------------------------------------------------------------------

// Event names pushed on a subscription channel.
const (
	EventHello = "hello"
	EventPrice = "price"
	EventPing  = "ping"
)

// MHelloEvent confirms what the client is subscribed to, sent once on connect.
type MHelloEvent struct {
	OK      bool     `json:"ok"`
	Plan    string   `json:"plan"`
	Fiat    string   `json:"fiat"`
	Symbols []string `json:"symbols"`
	Ts      string   `json:"ts"`
}

// MPriceEvent carries the prices filtered down to the subscriber's symbols.
type MPriceEvent struct {
	Ts     string             `json:"ts"`
	Fiat   string             `json:"fiat"`
	Source string             `json:"source"`
	Prices map[string]float64 `json:"prices"`
}

// MPingEvent is a keepalive marker for idle-connection proxies.
type MPingEvent struct {
	OK bool   `json:"ok"`
	Ts string `json:"ts"`
}
