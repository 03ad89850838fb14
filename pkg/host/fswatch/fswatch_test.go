package fswatch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/signalbus/pkg/host"
)

// collector gathers signals behind a mutex so the watcher goroutine and the
// test can both touch them.
type collector struct {
	mu   sync.Mutex
	sigs []host.DocumentSignal
}

func (c *collector) add(sig host.DocumentSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sigs = append(c.sigs, sig)
}

func (c *collector) snapshot() []host.DocumentSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]host.DocumentSignal, len(c.sigs))
	copy(out, c.sigs)
	return out
}

func (c *collector) waitFor(t *testing.T, pred func([]host.DocumentSignal) bool) []host.DocumentSignal {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sigs := c.snapshot(); pred(sigs) {
			return sigs
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.snapshot()
}

func TestSource_CreateAndWrite(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	src := New(dir, &logger)
	col := &collector{}

	disconnect, err := src.Connect(col.add)
	require.NoError(t, err)
	defer disconnect()

	path := filepath.Join(dir, "part.fcstd")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	sigs := col.waitFor(t, func(sigs []host.DocumentSignal) bool { return len(sigs) >= 1 })
	require.NotEmpty(t, sigs)
	assert.Equal(t, host.DocumentCreated, sigs[0].Op)
	assert.Equal(t, "part.fcstd", sigs[0].DocumentID)
}

func TestSource_Remove(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	path := filepath.Join(dir, "assembly.fcstd")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	src := New(dir, &logger)
	col := &collector{}

	disconnect, err := src.Connect(col.add)
	require.NoError(t, err)
	defer disconnect()

	require.NoError(t, os.Remove(path))

	sigs := col.waitFor(t, func(sigs []host.DocumentSignal) bool {
		for _, s := range sigs {
			if s.Op == host.DocumentClosed {
				return true
			}
		}
		return false
	})

	var found bool
	for _, s := range sigs {
		if s.Op == host.DocumentClosed && s.DocumentID == "assembly.fcstd" {
			found = true
		}
	}
	assert.True(t, found, "expected a closed signal, got %v", sigs)
}

func TestSource_ConnectMissingDir(t *testing.T) {
	logger := zerolog.Nop()
	src := New("/nonexistent/signalbus-test", &logger)

	_, err := src.Connect(func(host.DocumentSignal) {})
	assert.Error(t, err)
}

func TestSource_DisconnectStopsCallbacks(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	src := New(dir, &logger)
	col := &collector{}

	disconnect, err := src.Connect(col.add)
	require.NoError(t, err)

	disconnect()
	disconnect() // idempotent

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.fcstd"), []byte("v1"), 0o644))
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, col.snapshot())
}

func TestSource_ConcurrentDisconnect(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()

	src := New(dir, &logger)

	disconnect, err := src.Connect(func(host.DocumentSignal) {})
	require.NoError(t, err)

	// Racing disconnects must all return cleanly; the watcher is closed once.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			disconnect()
		}()
	}
	wg.Wait()
}
