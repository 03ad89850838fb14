package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/signalbus/pkg/errors"
	"github.com/forgeline/signalbus/pkg/event"
)

func TestFuncSink(t *testing.T) {
	var got []event.Event
	s := FuncSink(func(ev event.Event) error {
		got = append(got, ev)
		return nil
	})

	require.NoError(t, s.Send(event.New(event.KindError, nil, "test")))
	require.NoError(t, s.Close())
	assert.Len(t, got, 1)
}

func TestChannelSink_Delivery(t *testing.T) {
	s := NewChannelSink(4)

	ev := event.New(event.KindCommandExecuted, map[string]any{"command_id": "Std_Undo"}, "command")
	require.NoError(t, s.Send(ev))

	received := <-s.Events()
	assert.Equal(t, event.KindCommandExecuted, received.Kind)
	assert.Equal(t, "Std_Undo", received.Payload["command_id"])
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)

	require.NoError(t, s.Send(event.New(event.KindError, nil, "test")))
	err := s.Send(event.New(event.KindError, nil, "test"))

	assert.ErrorIs(t, err, errors.ErrOverloaded)
	assert.Equal(t, uint64(1), s.Dropped())
}

func TestChannelSink_Close(t *testing.T) {
	s := NewChannelSink(1)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	err := s.Send(event.New(event.KindError, nil, "test"))
	assert.ErrorIs(t, err, errors.ErrClosed)

	_, open := <-s.Events()
	assert.False(t, open)
}

func TestChannelSink_DefaultBuffer(t *testing.T) {
	s := NewChannelSink(0)
	require.NoError(t, s.Send(event.New(event.KindError, nil, "test")))
}
