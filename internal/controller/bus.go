package controller

import (
	"fmt"
	"sync"
)

// Logger is the logging dependency of the package.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Subscriber receives published events.
type Subscriber func(Event)

// Bus delivers events to its subscribers in subscription order.
//
// Thread Safety:
//   - Subscribe and Publish are safe for concurrent use.
//   - Subscribers run synchronously on the publishing goroutine and may be
//     called concurrently when events are published from several goroutines.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
	logger      Logger
}

type namedSubscriber struct {
	name string
	fn   Subscriber
}

// NewBus returns an empty Bus. logger may be nil.
func NewBus(logger Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe appends fn to the subscriber list. name identifies the
// subscriber in logs.
func (b *Bus) Subscribe(name string, fn Subscriber) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, namedSubscriber{name: name, fn: fn})
	b.mu.Unlock()
}

// Publish calls every subscriber with evt. A panicking subscriber is
// recovered and logged; the remaining subscribers still run.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := make([]namedSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, evt)
	}
}

func (b *Bus) deliver(s namedSubscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("event subscriber panicked",
				"subscriber", s.name,
				"event", string(evt.Type),
				"uri", evt.Controller.URI,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.fn(evt)
}
