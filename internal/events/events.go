// Package events carries progress and lifecycle notifications from the core
// to whoever is listening. Publishing never blocks and never fails.
package events

import (
	"sync"
)

type Kind string

const (
	KindProgress Kind = "PROGRESS"
	KindStatus   Kind = "STATUS"
	KindPhase    Kind = "PHASE"
	KindDone     Kind = "DONE"
	KindError    Kind = "ERROR"
	KindSnapshot Kind = "SNAPSHOT"
)

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind      Kind   `json:"type"`
	Completed int    `json:"completed,omitempty"`
	Total     int    `json:"total,omitempty"`
	Text      string `json:"text,omitempty"`
	Name      string `json:"name,omitempty"`
	Step      string `json:"step,omitempty"`
}

func Progress(completed, total int) Event {
	return Event{Kind: KindProgress, Completed: completed, Total: total}
}

func Snapshot(completed, total int) Event {
	return Event{Kind: KindSnapshot, Completed: completed, Total: total}
}

func Status(text string) Event { return Event{Kind: KindStatus, Text: text} }

func Phase(name, step string) Event { return Event{Kind: KindPhase, Name: name, Step: step} }

func Done(name string) Event { return Event{Kind: KindDone, Name: name} }

// Error reports an operation that stopped with err.
func Error(text string) Event { return Event{Kind: KindError, Text: text} }

// Publisher accepts events without waiting for delivery.
type Publisher interface {
	Publish(Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events instead of slowing the publisher down.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewBus creates a bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: map[chan Event]struct{}{}, buffer: buffer}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Multi publishes to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}
