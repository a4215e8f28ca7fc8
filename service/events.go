package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/healthops/alert"
	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/remedy"
)

// EventType identifies an outbound engine event.
type EventType string

const (
	EventCheckExecuted        EventType = "check-executed"
	EventCheckFailed          EventType = "check-failed"
	EventCheckSkipped         EventType = "check-skipped"
	EventAlertRaised          EventType = "alert-raised"
	EventAlertEscalated       EventType = "alert-escalated"
	EventRemediationAttempted EventType = "remediation-attempted"
	EventRemediationVerified  EventType = "remediation-verified"
	EventOverallStatusChanged EventType = "overall-status-changed"
	EventCheckRegistered      EventType = "check-registered"
	EventCheckUnregistered    EventType = "check-unregistered"
	EventConfigUpdated        EventType = "config-updated"
)

// Event is an immutable record published to subscribers. The engine never
// blocks on subscriber processing; a subscriber that falls behind loses its
// oldest events.
type Event struct {
	// ID uniquely identifies the event.
	ID string

	// Type is the event type.
	Type EventType

	// CheckName names the check the event concerns, when any.
	CheckName string

	// Result carries the relevant result, when any.
	Result *health.Result

	// Alert carries the raised or escalated alert for alert events.
	Alert *alert.Alert

	// Remediation carries the attempt for remediation events.
	Remediation *remedy.Attempt

	// Overall carries the new reduction for overall-status-changed.
	Overall health.Status

	// CorrelationID ties the event to an execution episode.
	CorrelationID string

	// Timestamp is when the event was published.
	Timestamp time.Time
}

// Bus fans events out to subscribers over buffered channels.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	buffer  int
	dropped func()
}

// NewBus creates an event bus. Each subscriber gets a channel with the
// given buffer; dropped is called once per event lost to a full buffer and
// may be nil.
func NewBus(buffer int, dropped func()) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:    make(map[int]chan Event),
		buffer:  buffer,
		dropped: dropped,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. When a
// subscriber's buffer is full its oldest event is discarded to make room.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Full buffer: drop the oldest queued event and retry once.
		select {
		case <-ch:
			if b.dropped != nil {
				b.dropped()
			}
		default:
		}
		select {
		case ch <- ev:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// Close removes all subscribers and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func newEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}
