package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime"
)

// MemoryBus fans events out to in-process subscribers. It is used when no Redis is
// configured and in tests. Slow subscribers drop events rather than block publishers.
type MemoryBus struct {
	log *logger.Logger

	mu     sync.RWMutex
	subs   map[int]chan realtime.Event
	nextID int
	closed bool
	buffer int
}

func NewMemoryBus(log *logger.Logger) *MemoryBus {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryBus{
		log:    log.With("service", "MemoryEventBus"),
		subs:   map[int]chan realtime.Event{},
		buffer: 64,
	}
}

var _ Bus = (*MemoryBus)(nil)

func (b *MemoryBus) Publish(ctx context.Context, evt realtime.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("memory event bus closed")
	}
	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.log.Warn("event dropped for slow subscriber", "subscriber", id, "type", evt.Type)
		}
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onEvent func(evt realtime.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory event bus closed")
	}
	id := b.nextID
	b.nextID++
	ch := make(chan realtime.Event, b.buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.unsubscribe(id)
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				onEvent(evt)
			}
		}
	}()
	return nil
}

func (b *MemoryBus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
