package sinks_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"stardrift/client/logging"
	"stardrift/client/logging/sinks"
)

// safeBuffer lets the test read while the flush goroutine writes.
type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func waitForBytes(t *testing.T, buf *safeBuffer) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n := buf.Len(); n > 0 {
			return n
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for a periodic flush")
	return 0
}

func TestJSONSinkFlushGoroutineStopsOnClose(t *testing.T) {
	buf := &safeBuffer{}
	sink := sinks.NewJSON(buf, 5*time.Millisecond)

	if err := sink.Write(logging.Event{Type: "network.state_changed"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitForBytes(t, buf)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	flushed := buf.Len()

	// This event stays buffered: the ticker no longer flushes it.
	if err := sink.Write(logging.Event{Type: "network.heartbeat_timeout"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := buf.Len(); got != flushed {
		t.Fatalf("flush goroutine survived close: %d bytes after %d", got, flushed)
	}

	// A second close is safe and drains what remained.
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if got := buf.Len(); got <= flushed {
		t.Fatalf("close must flush the buffer, still %d bytes", got)
	}
}
