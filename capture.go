package signalbus

import (
	"fmt"
	"runtime/debug"

	"github.com/forgeline/signalbus/internal/adapters"
	"github.com/forgeline/signalbus/pkg/event"
)

// Truncation bounds matching the error adapter's payload limits.
const (
	captureMessageLen = 500
	captureStackLen   = 2000
)

// CaptureError records an application error as an error event. It is a no-op
// unless global error capture is enabled, and it never fails: hosts call it
// from error paths that must not grow new ones.
func (m *manager) CaptureError(source string, err error) {
	if err == nil || !m.captureActive() {
		return
	}
	m.router.Record(event.New(event.KindError, map[string]any{
		"message": adapters.Truncate(err.Error(), captureMessageLen),
		"source":  source,
	}, "capture"))
}

// CapturePanic records a recovered panic value as an error event, with the
// capturing goroutine's stack. Intended for use in the host's own recover
// handlers:
//
//	defer func() {
//		if r := recover(); r != nil {
//			CapturePanic(m, "macro_runner", r)
//			panic(r)
//		}
//	}()
func CapturePanic(m Manager, source string, recovered any) {
	impl, ok := m.(*manager)
	if !ok || recovered == nil || !impl.captureActive() {
		return
	}
	impl.router.Record(event.New(event.KindError, map[string]any{
		"message": adapters.Truncate(fmt.Sprintf("panic: %v", recovered), captureMessageLen),
		"source":  source,
		"stack":   adapters.Truncate(string(debug.Stack()), captureStackLen),
	}, "capture"))
}

func (m *manager) captureActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.captureEnabled && m.state == StateReady
}
