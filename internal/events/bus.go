package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTradeOpened       EventType = "TRADE_OPENED"
	EventTradeClosed       EventType = "TRADE_CLOSED"
	EventSignalGenerated   EventType = "SIGNAL_GENERATED"
	EventKillSwitchTripped EventType = "KILL_SWITCH_TRIPPED"
	EventKillSwitchReset   EventType = "KILL_SWITCH_RESET"
	EventBotStarted        EventType = "BOT_STARTED"
	EventBotStopped        EventType = "BOT_STOPPED"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(symbol, side string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(symbol, side, status string, entryPrice, exitPrice, quantity, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"status":      status,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
			"pnl":         pnl,
		},
	})
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(strategyName, symbol, signalType string, price float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"strategy":    strategyName,
			"symbol":      symbol,
			"signal_type": signalType,
			"price":       price,
		},
	})
}

// PublishKillSwitchTripped publishes a kill switch trip event
func (eb *EventBus) PublishKillSwitchTripped(reason string, consecutiveLosses int, totalPnL float64) {
	eb.Publish(Event{
		Type: EventKillSwitchTripped,
		Data: map[string]interface{}{
			"reason":             reason,
			"consecutive_losses": consecutiveLosses,
			"total_pnl":          totalPnL,
		},
	})
}

// PublishKillSwitchReset publishes a kill switch reset event
func (eb *EventBus) PublishKillSwitchReset() {
	eb.Publish(Event{
		Type: EventKillSwitchReset,
		Data: map[string]interface{}{},
	})
}

// PublishBotStarted publishes a bot started event
func (eb *EventBus) PublishBotStarted(variant string, symbols []string) {
	eb.Publish(Event{
		Type: EventBotStarted,
		Data: map[string]interface{}{
			"variant": variant,
			"symbols": symbols,
		},
	})
}

// PublishBotStopped publishes a bot stopped event
func (eb *EventBus) PublishBotStopped(variant string) {
	eb.Publish(Event{
		Type: EventBotStopped,
		Data: map[string]interface{}{
			"variant": variant,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
