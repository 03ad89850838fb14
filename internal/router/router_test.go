package router

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/signalbus/internal/registry"
	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
)

type collectingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *collectingSink) Send(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *collectingSink) Close() error { return nil }

func (s *collectingSink) snapshot() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func newTestRouter(limits Limits) (*Router, *registry.Registry) {
	nop := zerolog.Nop()
	kinds := event.NewKindRegistry()
	reg := registry.New(kinds, &nop)
	return New(kinds, reg, limits, &nop), reg
}

func TestRecord_AppendsThenBroadcasts(t *testing.T) {
	r, reg := newTestRouter(Limits{})

	// A sink that inspects history during delivery must observe the event
	// that triggered it.
	var sawOwnEvent bool
	require.NoError(t, reg.Register("probe", []string{"*"}, sinkFunc(func(ev event.Event) error {
		for _, h := range r.History(0, "") {
			if h.Seq == ev.Seq {
				sawOwnEvent = true
			}
		}
		return nil
	})))

	r.Record(event.New(event.KindDocumentChanged, map[string]any{"document_id": "doc-1"}, "document"))

	assert.True(t, sawOwnEvent, "history append must happen before broadcast")
	assert.Equal(t, 1, r.HistorySize())
	assert.Equal(t, uint64(1), r.Recorded())
}

// sinkFunc adapts a function to the sink interface for probes.
type sinkFunc func(event.Event) error

func (f sinkFunc) Send(ev event.Event) error { return f(ev) }
func (f sinkFunc) Close() error              { return nil }

func TestHistory_OrderedAcrossCategories(t *testing.T) {
	r, _ := newTestRouter(Limits{})

	r.Record(event.New(event.KindDocumentCreated, nil, "document"))
	r.Record(event.New(event.KindCommandExecuted, nil, "command"))
	r.Record(event.New(event.KindError, nil, "error"))
	r.Record(event.New(event.KindDocumentChanged, nil, "document"))

	got := r.History(0, "")
	require.Len(t, got, 4)

	want := []event.Kind{
		event.KindDocumentCreated,
		event.KindCommandExecuted,
		event.KindError,
		event.KindDocumentChanged,
	}
	for i, ev := range got {
		assert.Equal(t, want[i], ev.Kind, "history must interleave categories in record order")
	}
}

func TestHistory_LimitReturnsNewest(t *testing.T) {
	r, _ := newTestRouter(Limits{})

	for i := 0; i < 10; i++ {
		r.Record(event.New(event.KindDocumentChanged, map[string]any{"n": i}, "document"))
	}

	got := r.History(3, "")
	require.Len(t, got, 3)
	assert.Equal(t, 7, got[0].Payload["n"])
	assert.Equal(t, 9, got[2].Payload["n"])
}

func TestHistory_KindFilter(t *testing.T) {
	r, _ := newTestRouter(Limits{})

	r.Record(event.New(event.KindDocumentChanged, nil, "document"))
	r.Record(event.New(event.KindDocumentCreated, nil, "document"))
	r.Record(event.New(event.KindDocumentChanged, nil, "document"))

	got := r.History(0, event.KindDocumentChanged)
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Equal(t, event.KindDocumentChanged, ev.Kind)
	}
}

func TestHistory_PerCategoryBounds(t *testing.T) {
	r, _ := newTestRouter(Limits{Default: 5, Command: 3, Error: 2})

	for i := 0; i < 10; i++ {
		r.Record(event.New(event.KindDocumentChanged, map[string]any{"n": i}, "document"))
		r.Record(event.New(event.KindCommandExecuted, map[string]any{"n": i}, "command"))
		r.Record(event.New(event.KindError, map[string]any{"n": i}, "error"))
	}

	docs := r.History(0, event.KindDocumentChanged)
	cmds := r.History(0, event.KindCommandExecuted)
	errs := r.History(0, event.KindError)

	assert.Len(t, docs, 5)
	assert.Len(t, cmds, 3)
	assert.Len(t, errs, 2)

	// Oldest entries were evicted; the retained ones are the newest.
	assert.Equal(t, 5, docs[0].Payload["n"])
	assert.Equal(t, 7, cmds[0].Payload["n"])
	assert.Equal(t, 8, errs[0].Payload["n"])
}

func TestEmitCustom(t *testing.T) {
	r, reg := newTestRouter(Limits{})

	require.NoError(t, r.EmitCustom("plugin.loaded", map[string]any{"plugin": "exporter"}, "plugin-host"))

	got := r.History(0, "")
	require.Len(t, got, 1)
	assert.Equal(t, event.Kind("plugin.loaded"), got[0].Kind)
	assert.Equal(t, "plugin-host", got[0].Source)

	// First use declares the kind, so subscribers may now filter on it.
	assert.NoError(t, reg.Register("c1", []string{"plugin.loaded"}, &collectingSink{}))
}

func TestEmitCustom_RejectsInvalidName(t *testing.T) {
	r, _ := newTestRouter(Limits{})

	for _, bad := range []string{"", "Has Spaces", "UPPER", "emoji✨"} {
		err := r.EmitCustom(event.Kind(bad), nil, "test")
		assert.True(t, errors.IsValidation(err), "kind %q must be rejected", bad)
	}
	assert.Equal(t, 0, r.HistorySize())
}

func TestRecord_Concurrent(t *testing.T) {
	r, reg := newTestRouter(Limits{})
	snk := &collectingSink{}
	require.NoError(t, reg.Register("c1", []string{"*"}, snk))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				r.Record(event.New(event.KindCommandExecuted,
					map[string]any{"command_id": fmt.Sprintf("cmd-%d-%d", i, j)}, "command"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(200), r.Recorded())
	assert.Len(t, snk.snapshot(), 200)

	// Seq numbers in history are unique and strictly increasing.
	history := r.History(0, "")
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Seq, history[i-1].Seq)
	}
}
