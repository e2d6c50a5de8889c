package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/habitline/internal/logger"
)

// Type names a domain event
type Type string

const (
	HabitCreated     Type = "habit.created"
	HabitUpdated     Type = "habit.updated"
	HabitArchived    Type = "habit.archived"
	HabitUnarchived  Type = "habit.unarchived"
	HabitDeleted     Type = "habit.deleted"
	HabitCompleted   Type = "habit.completed"
	HabitUncompleted Type = "habit.uncompleted"
	StreakReset      Type = "streak.reset"
	UserCreated      Type = "user.created"
	UserUpdated      Type = "user.updated"
	UserDeleted      Type = "user.deleted"
)

// Event is a notification that something changed for a user
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"userId"`
	HabitID    string    `json:"habitId,omitempty"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Handler receives published events on the dispatcher goroutine
type Handler func(Event)

// Bus is an in-process, fire-and-forget event bus. Publish never blocks:
// events that do not fit in the queue are dropped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	queue    chan Event
	closed   bool
	done     chan struct{}
}

// NewBus starts a bus whose queue holds up to size pending events
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 1
	}
	b := &Bus{
		handlers: make(map[int]Handler),
		queue:    make(chan Event, size),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish queues e for delivery. It is a no-op after Close.
func (b *Bus) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.queue <- e:
	default:
		logger.Warn("Event queue full, dropping event", "type", e.Type, "user", e.UserID)
	}
}

// Close stops accepting events and waits until queued ones are delivered
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		handlers := make([]Handler, 0, len(b.handlers))
		for _, h := range b.handlers {
			handlers = append(handlers, h)
		}
		b.mu.RUnlock()

		for _, h := range handlers {
			deliver(h, e)
		}
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event handler panicked", "type", e.Type, "panic", fmt.Sprint(r))
		}
	}()
	h(e)
}

// LogHandler writes every event to the application log
func LogHandler(e Event) {
	logger.Info("Event", "type", e.Type, "user", e.UserID, "habit", e.HabitID)
}
