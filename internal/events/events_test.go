package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(8)

	var (
		mu  sync.Mutex
		got []Type
	)
	bus.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	})

	bus.Publish(Event{Type: HabitCompleted, UserID: "u1", HabitID: "h1"})
	bus.Publish(Event{Type: HabitUncompleted, UserID: "u1", HabitID: "h1"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Type{HabitCompleted, HabitUncompleted}, got)
}

func TestPublishStampsTime(t *testing.T) {
	bus := NewBus(1)
	received := make(chan Event, 1)
	bus.Subscribe(func(e Event) { received <- e })

	bus.Publish(Event{Type: UserCreated})

	select {
	case e := <-received:
		assert.False(t, e.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	bus.Close()
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(4)
	calls := 0
	unsubscribe := bus.Subscribe(func(Event) { calls++ })
	unsubscribe()

	bus.Publish(Event{Type: HabitCreated})
	bus.Close()

	assert.Zero(t, calls)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(1)
	bus.Close()

	require.NotPanics(t, func() {
		bus.Publish(Event{Type: HabitDeleted})
	})
	// closing twice is allowed
	require.NotPanics(t, bus.Close)
}

func TestFullQueueDropsEvents(t *testing.T) {
	bus := NewBus(1)
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		count int
	)
	bus.Subscribe(func(Event) {
		<-release
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: HabitUpdated})
	}
	close(release)
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, count, 1)
	assert.Less(t, count, 10)
}

func TestHandlerPanicDoesNotStopBus(t *testing.T) {
	bus := NewBus(4)
	delivered := make(chan struct{}, 2)
	bus.Subscribe(func(e Event) {
		if e.Type == HabitCreated {
			panic("boom")
		}
		delivered <- struct{}{}
	})

	bus.Publish(Event{Type: HabitCreated})
	bus.Publish(Event{Type: HabitUpdated})
	bus.Close()

	assert.Len(t, delivered, 1)
}

func TestLogHandlerWithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogHandler(Event{Type: UserDeleted, UserID: "u1"})
	})
}
