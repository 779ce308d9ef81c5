package service

import (
	"fmt"
	"sync"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ output.EventPublisher = (*EventBus)(nil)

const defaultChannelBuffer = 64

// EventBus fans events out to callback and channel subscribers.
// Publish is serialized: every subscriber sees events in publish order.
// Handlers run synchronously and must not publish or unsubscribe channels.
type EventBus struct {
	logger output.LoggerPort

	publishMu sync.Mutex
	seq       uint64

	mu       sync.RWMutex
	nextID   int
	handlers []handlerSub
	channels []chanSub
}

type handlerSub struct {
	id int
	fn func(entity.Event)
}

type chanSub struct {
	id int
	ch chan entity.Event
}

func NewEventBus(logger output.LoggerPort) *EventBus {
	return &EventBus{logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
func (b *EventBus) Subscribe(fn func(entity.Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, handlerSub{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, h := range b.handlers {
			if h.id == id {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeChan returns a buffered channel of events. When the buffer is full
// events are dropped with a warning. The returned function closes the channel.
func (b *EventBus) SubscribeChan(buffer int) (<-chan entity.Event, func()) {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	ch := make(chan entity.Event, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.channels = append(b.channels, chanSub{id: id, ch: ch})
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.publishMu.Lock()
			defer b.publishMu.Unlock()
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, c := range b.channels {
				if c.id == id {
					b.channels = append(b.channels[:i:i], b.channels[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

func (b *EventBus) Publish(event entity.Event) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.seq++
	event.Seq = b.seq

	b.mu.RLock()
	handlers := make([]handlerSub, len(b.handlers))
	copy(handlers, b.handlers)
	channels := make([]chanSub, len(b.channels))
	copy(channels, b.channels)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h.fn, event)
	}

	for _, c := range channels {
		select {
		case c.ch <- event:
		default:
			if b.logger != nil {
				b.logger.Warn("Event subscriber channel full, event dropped",
					"type", event.Type, "seq", event.Seq)
			}
		}
	}
}

func (b *EventBus) dispatch(fn func(entity.Event), event entity.Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("Event handler panicked", "type", event.Type, "panic", fmt.Sprint(r))
		}
	}()
	fn(event)
}
