package transport

// Transport boundary. The engine never opens serial ports itself; it
// consumes chunk events and writes finished payloads through this interface.

import (
	"sync"
	"time"

	sferr "github.com/kbaxter/serialforge/internal/errors"
)

// ChunkHandler receives one inbound chunk with its arrival timestamp.
type ChunkHandler func(data []byte, ts time.Time)

// Transport is the boundary to a byte-stream device.
type Transport interface {
	// Write sends payload bytes to the device.
	Write(p []byte) error
	// Subscribe registers the handler for inbound chunks. One handler per
	// transport; the transport delivers chunks in arrival order.
	Subscribe(h ChunkHandler)
	Close() error
}

// Responder computes the loopback device's reply chunks for a written
// payload. Nil means echo the payload back as one chunk.
type Responder func(payload []byte) [][]byte

// Loopback is an in-memory transport for tests and the CLI: every Write is
// answered synchronously by the responder.
type Loopback struct {
	mu        sync.Mutex
	handler   ChunkHandler
	responder Responder
	now       func() time.Time
	closed    bool
}

// NewLoopback creates a loopback transport. A nil now function uses the
// system clock.
func NewLoopback(responder Responder, now func() time.Time) *Loopback {
	if now == nil {
		now = time.Now
	}
	return &Loopback{responder: responder, now: now}
}

func (l *Loopback) Subscribe(h ChunkHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
}

func (l *Loopback) Write(p []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return &sferr.IoError{Op: "write", Err: errClosed}
	}
	handler := l.handler
	responder := l.responder
	now := l.now
	l.mu.Unlock()

	if handler == nil {
		return nil
	}
	if responder == nil {
		buf := make([]byte, len(p))
		copy(buf, p)
		handler(buf, now())
		return nil
	}
	for _, chunk := range responder(p) {
		handler(chunk, now())
	}
	return nil
}

// Inject delivers raw inbound chunks without a preceding write, the way a
// device volunteers unsolicited data.
func (l *Loopback) Inject(chunk []byte, ts time.Time) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()
	if handler != nil {
		handler(chunk, ts)
	}
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

var errClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "transport closed" }
