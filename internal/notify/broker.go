// Package notify delivers engine notifications to people: over in-process
// streams (SSE and WebSocket clients subscribe to a Broker) and as Discord
// direct messages.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/playperu/manhunt/internal/manhunt"
)

// ErrNotConnected means nobody is subscribed to the recipient's stream.
var ErrNotConnected = errors.New("recipient has no open stream")

// Event is the payload published to a person's subscribers.
type Event struct {
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

const (
	EventText     = "text"
	EventLocation = "location"
)

// Broker is an in-process pub/sub for notification events, keyed by person.
type Broker struct {
	mu   sync.RWMutex
	subs map[manhunt.PersonID]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[manhunt.PersonID]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for p.
func (b *Broker) Subscribe(p manhunt.PersonID) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[p] == nil {
		b.subs[p] = make(map[chan []byte]struct{})
	}
	b.subs[p][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from p's subscribers.
func (b *Broker) Unsubscribe(p manhunt.PersonID, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[p], ch)
	if len(b.subs[p]) == 0 {
		delete(b.subs, p)
	}
	b.mu.Unlock()
}

// Publish sends an event to all of p's subscribers.
func (b *Broker) Publish(p manhunt.PersonID, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.subs[p]) == 0 {
		return ErrNotConnected
	}
	for ch := range b.subs[p] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	return nil
}

func (b *Broker) SendText(_ context.Context, to manhunt.PersonID, text string) error {
	return b.Publish(to, Event{Type: EventText, Text: text, SentAt: time.Now().UTC()})
}

func (b *Broker) SendLocation(_ context.Context, to manhunt.PersonID, lat, lon float64) error {
	return b.Publish(to, Event{Type: EventLocation, Latitude: lat, Longitude: lon, SentAt: time.Now().UTC()})
}
