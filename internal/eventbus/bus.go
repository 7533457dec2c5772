package eventbus

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Event is anything with a stable type name. Handlers are registered against
// that name.
type Event interface {
	EventName() string
}

type Handler func(Event)

// Emitter is the publish side of the bus. Components that only emit depend
// on this instead of the full Bus.
type Emitter interface {
	Emit(Event)
}

type registration struct {
	handler  Handler
	priority Priority
	seq      int
}

// Bus is a priority-ordered publish/subscribe dispatcher. Emit never runs
// handler bodies on the caller's goroutine: each emit is queued as one job
// and executed by a fixed pool of workers, which runs the event's handlers
// sequentially in priority order. A panicking handler is recovered and
// logged without affecting its siblings.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	nextSeq  int
	closed   bool

	enabled atomic.Bool
	queue   chan job
	wg      sync.WaitGroup

	closeOnce sync.Once
}

type job struct {
	event    Event
	handlers []registration
}

func New(workers, queueSize int) *Bus {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	b := &Bus{
		handlers: make(map[string][]registration),
		queue:    make(chan job, queueSize),
	}
	b.enabled.Store(true)
	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.worker()
	}
	return b
}

// Register adds a handler for the named event type. Handlers for one event
// run in descending priority order; equal priorities keep registration order.
func (b *Bus) Register(eventName string, handler Handler, priority Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := append(b.handlers[eventName], registration{
		handler:  handler,
		priority: priority,
		seq:      b.nextSeq,
	})
	b.nextSeq++
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	b.handlers[eventName] = regs
}

// Emit schedules all handlers registered for the event's type and returns
// without waiting for them. When the queue is full the event is dropped and
// logged rather than blocking the emitter.
func (b *Bus) Emit(event Event) {
	if !b.enabled.Load() {
		return
	}
	// The read lock is held across the send so Close cannot close the queue
	// underneath a concurrent Emit. The send never blocks, so the lock is
	// held only briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	regs := b.handlers[event.EventName()]
	if len(regs) == 0 {
		return
	}
	select {
	case b.queue <- job{event: event, handlers: regs}:
	default:
		slog.Warn("event bus queue full; dropping event", "event", event.EventName())
	}
}

// SetEnabled toggles all dispatch. Tests use this to silence the bus.
func (b *Bus) SetEnabled(enabled bool) {
	b.enabled.Store(enabled)
}

// Close stops accepting events and waits for queued handler executions to
// finish.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.enabled.Store(false)
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.queue)
		b.wg.Wait()
	})
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for j := range b.queue {
		for _, reg := range j.handlers {
			runHandler(j.event, reg.handler)
		}
	}
}

func runHandler(event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "event", event.EventName(), "panic", r)
		}
	}()
	handler(event)
}
