package pool

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// quietLogger discards everything so failing-task tests don't flood output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGroup creates a group that is closed when the test ends.
func newTestGroup(t *testing.T, workers int, opts ...Option) *WorkerGroup {
	t.Helper()

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	g, err := New(workers, opts...)
	if err != nil {
		t.Fatalf("New(%d) error = %v", workers, err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// syncBuffer is a goroutine-safe bytes.Buffer for capturing log output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
