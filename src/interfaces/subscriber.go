package interfaces

// -----------------------------------------------------------------------------
// ISubscriberChannel is the push side of one long-lived client connection.
// The transport owns the wire; the broadcaster only pushes named events.
// -----------------------------------------------------------------------------

type ISubscriberChannel interface {

	// Push delivers one named event with a structured payload.
	// An error means the connection is broken and the subscription
	// should be torn down.
	Push(event string, payload interface{}) error

	// -----------------------------------------------------------------------------

	// Close releases the underlying connection. Must be idempotent.
	Close()
}
