package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"pricelink/src/broadcast"
	"pricelink/src/validation"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// SSE transport: one sseChannel per open stream. The mutex serializes
// writes so price and ping pushes from different goroutines cannot
// interleave on the wire; order within the subscription is preserved.
// -----------------------------------------------------------------------------

var errChannelClosed = errors.New("channel closed")

type sseChannel struct {
	mu     sync.Mutex
	writer gin.ResponseWriter
	closed bool
	done   chan struct{}
}

// -----------------------------------------------------------------------------

func newSSEChannel(w gin.ResponseWriter) *sseChannel {
	return &sseChannel{
		writer: w,
		done:   make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Push implements interfaces.ISubscriberChannel.
func (ch *sseChannel) Push(event string, payload interface{}) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return errChannelClosed
	}

	if err := sse.Encode(ch.writer, sse.Event{Event: event, Data: payload}); err != nil {
		return err
	}
	ch.writer.Flush()
	return nil
}

// -----------------------------------------------------------------------------

// Close implements interfaces.ISubscriberChannel. Idempotent.
func (ch *sseChannel) Close() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return
	}
	ch.closed = true
	close(ch.done)
}

// -----------------------------------------------------------------------------

// Done unblocks when the channel reaches its terminal state.
func (ch *sseChannel) Done() <-chan struct{} {
	return ch.done
}

// -----------------------------------------------------------------------------
// Handler
// -----------------------------------------------------------------------------

func (s *APIServer) streamPrices(c *gin.Context) {
	apiKey := apiKeyFromContext(c)
	plan := planFromContext(c)

	symbolsCsv := c.DefaultQuery("symbols", "")
	fiat := c.DefaultQuery("fiat", "")

	list := validation.NormalizeSymbolsCSV(symbolsCsv)
	if len(list) > plan.MaxSymbols {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": fmt.Sprintf("too many symbols, max %d for plan %s", plan.MaxSymbols, plan.Name),
		})
		return
	}

	// Stream headers must be in place before the hello event is written.
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ch := newSSEChannel(c.Writer)
	sub, err := s.Broadcaster.Subscribe(apiKey, list, fiat, ch)
	if err != nil {
		// Nothing has been written yet, fall back to a JSON error.
		c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")

		var tooMany *broadcast.TooManyConnectionsError
		if errors.As(err, &tooMany) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "too many concurrent connections",
				"max":   tooMany.Max,
			})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}

	// Hold the handler open until the client goes away or the
	// subscription is torn down (push failure, explicit close).
	select {
	case <-c.Request.Context().Done():
	case <-ch.Done():
	}
	sub.Close()
}
