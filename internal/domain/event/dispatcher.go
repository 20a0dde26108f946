package event

import (
	"sync"
)

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles
	HandledEvents() []string
}

// HandlerFunc adapts a function to EventHandler for the given event names
type HandlerFunc struct {
	Names []string
	Fn    func(DomainEvent)
}

// Handle calls Fn
func (h *HandlerFunc) Handle(event DomainEvent) error {
	h.Fn(event)
	return nil
}

// HandledEvents returns Names
func (h *HandlerFunc) HandledEvents() []string {
	return h.Names
}

// EventDispatcher fans domain events out to subscribed handlers
type EventDispatcher interface {
	Dispatch(event DomainEvent)
	// Subscribe registers a handler and returns an idempotent unsubscribe func
	Subscribe(handler EventHandler) func()
	Unsubscribe(handler EventHandler)
}

// InMemoryDispatcher delivers events inside the process.
// In async mode a single worker delivers events in dispatch order, so
// Dispatch never runs handlers on the caller's goroutine. Events
// dispatched after Close are delivered synchronously.
type InMemoryDispatcher struct {
	mu       sync.RWMutex
	byName   map[string][]EventHandler
	wildcard []EventHandler

	queueMu sync.RWMutex
	queue   chan DomainEvent
	closed  bool
	done    chan struct{}
}

// NewInMemoryDispatcher creates a dispatcher. async starts the delivery worker.
func NewInMemoryDispatcher(async bool) *InMemoryDispatcher {
	d := &InMemoryDispatcher{byName: make(map[string][]EventHandler)}
	if async {
		d.queue = make(chan DomainEvent, 256)
		d.done = make(chan struct{})
		go d.worker()
	}
	return d
}

func (d *InMemoryDispatcher) worker() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

// Close delivers queued events and stops the worker. Safe to call twice.
func (d *InMemoryDispatcher) Close() {
	d.queueMu.Lock()
	if d.queue == nil || d.closed {
		d.queueMu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.queueMu.Unlock()
	<-d.done
}

// Dispatch delivers event to handlers registered for its name and to wildcard handlers
func (d *InMemoryDispatcher) Dispatch(event DomainEvent) {
	d.queueMu.RLock()
	if d.queue != nil && !d.closed {
		d.queue <- event
		d.queueMu.RUnlock()
		return
	}
	d.queueMu.RUnlock()
	d.deliver(event)
}

func (d *InMemoryDispatcher) deliver(event DomainEvent) {
	d.mu.RLock()
	named := d.byName[event.EventName()]
	targets := make([]EventHandler, 0, len(named)+len(d.wildcard))
	targets = append(targets, named...)
	targets = append(targets, d.wildcard...)
	d.mu.RUnlock()

	for _, h := range targets {
		_ = h.Handle(event)
	}
}

// Subscribe registers handler for every name it reports
func (d *InMemoryDispatcher) Subscribe(handler EventHandler) func() {
	d.mu.Lock()
	for _, name := range handler.HandledEvents() {
		if name == NameAll {
			d.wildcard = append(d.wildcard, handler)
			continue
		}
		d.byName[name] = append(d.byName[name], handler)
	}
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.Unsubscribe(handler) })
	}
}

// Unsubscribe removes handler. Unknown handlers are ignored.
func (d *InMemoryDispatcher) Unsubscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range handler.HandledEvents() {
		if name == NameAll {
			d.wildcard = without(d.wildcard, handler)
			continue
		}
		d.byName[name] = without(d.byName[name], handler)
		if len(d.byName[name]) == 0 {
			delete(d.byName, name)
		}
	}
}

// HandlerCount returns how many handlers are registered for name
func (d *InMemoryDispatcher) HandlerCount(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if name == NameAll {
		return len(d.wildcard)
	}
	return len(d.byName[name])
}

// without returns a copy of list minus the first occurrence of h.
// Copying keeps slices already handed to deliver intact.
func without(list []EventHandler, h EventHandler) []EventHandler {
	for i, x := range list {
		if x == h {
			out := make([]EventHandler, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}

// NullDispatcher drops every event
type NullDispatcher struct{}

// NewNullDispatcher creates a new NullDispatcher
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

func (d *NullDispatcher) Dispatch(event DomainEvent) {}

func (d *NullDispatcher) Subscribe(handler EventHandler) func() { return func() {} }

func (d *NullDispatcher) Unsubscribe(handler EventHandler) {}
