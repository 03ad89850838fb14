package adapters

import (
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/signalbus/internal/scheduler"
	"github.com/forgeline/signalbus/pkg/event"
	"github.com/forgeline/signalbus/pkg/host"
	"github.com/forgeline/signalbus/pkg/host/hostsim"
)

// syncDispatcher runs tasks inline so tests observe recorded events without
// waiting on a worker pool.
type syncDispatcher struct{}

func (syncDispatcher) Submit(_ string, task scheduler.Task) error {
	task()
	return nil
}

// memRecorder captures recorded events.
type memRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *memRecorder) Record(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *memRecorder) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func newTestDeps() (*hostsim.Host, *memRecorder, *zerolog.Logger) {
	nop := zerolog.Nop()
	return hostsim.New(), &memRecorder{}, &nop
}

func TestDocumentAdapter_NormalizesOps(t *testing.T) {
	sim, rec, logger := newTestDeps()
	a := NewDocumentAdapter(sim.Documents(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())
	assert.True(t, a.Connected())

	sim.EmitDocument(host.DocumentSignal{Op: host.DocumentCreated, DocumentID: "doc-1"})
	sim.EmitDocument(host.DocumentSignal{Op: host.DocumentChanged, DocumentID: "doc-1", RecomputedIDs: []string{"a", "b"}})
	sim.EmitDocument(host.DocumentSignal{Op: host.DocumentActivated, DocumentID: "doc-1"})
	sim.EmitDocument(host.DocumentSignal{Op: host.SelectionChanged, DocumentID: "doc-1"})
	sim.EmitDocument(host.DocumentSignal{Op: host.DocumentClosed, DocumentID: "doc-1"})

	got := rec.snapshot()
	require.Len(t, got, 5)
	assert.Equal(t, event.KindDocumentCreated, got[0].Kind)
	assert.Equal(t, event.KindDocumentChanged, got[1].Kind)
	assert.Equal(t, []string{"a", "b"}, got[1].Payload["recomputed_ids"])
	assert.Equal(t, event.KindActiveDocumentChanged, got[2].Kind)
	assert.Equal(t, event.KindSelectionChanged, got[3].Kind)
	assert.Equal(t, event.KindDocumentClosed, got[4].Kind)

	for _, ev := range got {
		assert.Equal(t, "doc-1", ev.Payload["document_id"])
		assert.Equal(t, DocumentAdapterName, ev.Source)
	}
	assert.Equal(t, uint64(5), a.EventsEmitted())
}

func TestDocumentAdapter_UnknownOpIgnored(t *testing.T) {
	sim, rec, logger := newTestDeps()
	a := NewDocumentAdapter(sim.Documents(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())

	sim.EmitDocument(host.DocumentSignal{Op: "renamed", DocumentID: "doc-1"})

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, uint64(0), a.EventsEmitted())
}

func TestCommandAdapter(t *testing.T) {
	sim, rec, logger := newTestDeps()
	a := NewCommandAdapter(sim.Commands(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())

	sim.EmitCommand(host.CommandSignal{CommandID: "Std_New"})

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, event.KindCommandExecuted, got[0].Kind)
	assert.Equal(t, "Std_New", got[0].Payload["command_id"])
}

func TestErrorAdapter_TruncatesPayload(t *testing.T) {
	sim, rec, logger := newTestDeps()
	a := NewErrorAdapter(sim.Errors(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())

	sim.EmitError(host.ErrorSignal{
		Message: strings.Repeat("m", maxErrorMessageLen+100),
		Source:  "macro_runner",
		Stack:   strings.Repeat("s", maxErrorStackLen+100),
	})

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, event.KindError, got[0].Kind)
	assert.Equal(t, "macro_runner", got[0].Payload["source"])

	msg := got[0].Payload["message"].(string)
	stack := got[0].Payload["stack"].(string)
	assert.Len(t, msg, maxErrorMessageLen+len("...[truncated]"))
	assert.True(t, strings.HasSuffix(msg, "...[truncated]"))
	assert.Len(t, stack, maxErrorStackLen+len("...[truncated]"))
}

func TestAdapter_ConnectFailure(t *testing.T) {
	sim, rec, logger := newTestDeps()
	sim.FailConnections("command", true)

	a := NewCommandAdapter(sim.Commands(), syncDispatcher{}, rec, logger)
	err := a.Connect()

	require.Error(t, err)
	assert.False(t, a.Connected())

	// The adapter stays inert, not broken: nothing is emitted.
	sim.EmitCommand(host.CommandSignal{CommandID: "Std_New"})
	assert.Empty(t, rec.snapshot())
}

func TestAdapter_DisconnectStopsEmission(t *testing.T) {
	sim, rec, logger := newTestDeps()
	a := NewCommandAdapter(sim.Commands(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())

	sim.EmitCommand(host.CommandSignal{CommandID: "first"})
	a.Disconnect()
	sim.EmitCommand(host.CommandSignal{CommandID: "second"})

	require.Len(t, rec.snapshot(), 1)
	assert.False(t, a.Connected())

	// Idempotent.
	a.Disconnect()
	a.Disconnect()
}

func TestAdapter_StaleCallbackAfterDisconnect(t *testing.T) {
	sim, rec, logger := newTestDeps()
	a := NewCommandAdapter(sim.Commands(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())
	a.Disconnect()

	// A host delivering a buffered signal straight to the callback after
	// disconnect has returned must not produce an event.
	a.handle(host.CommandSignal{CommandID: "stale"})

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, uint64(0), a.EventsEmitted())
}

// panickingRecorder simulates a failure inside the broker while the host's
// callback thread is still on the stack.
type panickingRecorder struct {
	memRecorder
	armed bool
}

func (r *panickingRecorder) Record(ev event.Event) {
	if r.armed {
		r.armed = false
		panic("normalization blew up")
	}
	r.memRecorder.Record(ev)
}

func TestAdapter_InternalPanicBecomesErrorEvent(t *testing.T) {
	sim, _, logger := newTestDeps()
	rec := &panickingRecorder{armed: true}

	a := NewCommandAdapter(sim.Commands(), syncDispatcher{}, rec, logger)
	require.NoError(t, a.Connect())

	// Must not panic outward into the host.
	require.NotPanics(t, func() {
		sim.EmitCommand(host.CommandSignal{CommandID: "Std_New"})
	})

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, event.KindError, got[0].Kind)
	assert.Equal(t, "adapter:command", got[0].Payload["source"])
	assert.Contains(t, got[0].Payload["message"], "panic in command adapter")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...[truncated]", Truncate("abcdef", 3))
}
