package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	ev := core.NewEvent("s-1", core.EventSessionStart, nil)
	bus.Publish(ev)

	assert.Equal(t, ev.ID, (<-a).ID)
	assert.Equal(t, ev.ID, (<-b).ID)
}

func TestPublishNeverBlocksOnLaggingSubscriber(t *testing.T) {
	var dropped int
	bus := NewBus(func(o *Options) {
		o.Buffer = 1
		o.OnDrop = func(core.Event) { dropped++ }
	})
	ch, cancel := bus.Subscribe()
	defer cancel()

	// Nobody reads; the second publish must drop, not block.
	bus.Publish(core.NewEvent("s-1", core.EventAgentStart, nil))
	bus.Publish(core.NewEvent("s-1", core.EventAgentComplete, nil))

	assert.Equal(t, 1, dropped)
	first := <-ch
	assert.Equal(t, core.EventAgentStart, first.Type)
}

func TestSubscribeReplaysHistory(t *testing.T) {
	bus := NewBus()
	bus.Publish(core.NewEvent("s-1", core.EventSessionStart, nil))
	bus.Publish(core.NewEvent("s-1", core.EventConfidence, nil))

	ch, cancel := bus.Subscribe()
	defer cancel()

	assert.Equal(t, core.EventSessionStart, (<-ch).Type)
	assert.Equal(t, core.EventConfidence, (<-ch).Type)

	bus.Publish(core.NewEvent("s-1", core.EventAgentStart, nil))
	assert.Equal(t, core.EventAgentStart, (<-ch).Type)
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(core.NewEvent("s-1", core.EventSessionStart, nil))
	bus.Close()

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, core.EventSessionStart, ev.Type)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, bus.Subscribers())
}

func TestCancelDetaches(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel() // safe to call twice
	assert.Zero(t, bus.Subscribers())

	// Publishing after detach must not panic.
	bus.Publish(core.NewEvent("s-1", core.EventSessionComplete, nil))
}

func TestPublishAfterCloseIsNoOp(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Publish(core.NewEvent("s-1", core.EventSessionStart, nil))
	bus.Close()
}
