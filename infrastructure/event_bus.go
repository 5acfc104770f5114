package infrastructure

import (
	"context"
	"sync"

	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// EventBus delivers events to in-process handlers only. It is used when no
// NATS servers are configured.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]interfaces.EventHandler
	wg       sync.WaitGroup
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[events.EventType][]interfaces.EventHandler),
	}
}

var (
	_ interfaces.EventPublisher  = (*EventBus)(nil)
	_ interfaces.EventSubscriber = (*EventBus)(nil)
)

// RegisterLocalHandler adds a handler for a specific event type
func (b *EventBus) RegisterLocalHandler(eventType events.EventType, handler interfaces.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Publish hands the event to every handler on its own goroutine and returns
// immediately. Handler errors and panics are logged.
func (b *EventBus) Publish(event events.Event) error {
	b.mu.RLock()
	handlers := make([]interfaces.EventHandler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h interfaces.EventHandler, handlerIndex int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()

			if err := h(context.Background(), event); err != nil {
				log.WithFields(log.Fields{
					"eventType":    event.Type(),
					"handlerIndex": handlerIndex,
					"error":        err,
				}).Error("Event handler failed")
			}
		}(handler, i)
	}

	return nil
}

// Wait blocks until every handler started so far has returned
func (b *EventBus) Wait() {
	b.wg.Wait()
}
