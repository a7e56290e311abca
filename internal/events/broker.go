package events

import (
	"sync"
)

const (
	// RoutePlanned is published once per persisted route of a cycle.
	RoutePlanned = "route.planned"
	// RouteUpdated is published after a manual change to a route.
	RouteUpdated = "route.updated"
)

// Event is a message fanned out to the subscribers of one agent.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Broker fans events out per agent id. Slow subscribers drop events rather
// than block the publisher.
type Broker interface {
	Subscribe(agentID string) chan Event
	Unsubscribe(agentID string, ch chan Event)
	Publish(agentID string, evt Event)
}

// Memory is the in-process Broker.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // agentId -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe(agentID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[agentID] == nil {
		b.subs[agentID] = map[chan Event]struct{}{}
	}
	b.subs[agentID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(agentID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[agentID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, agentID)
	}
	close(ch)
}

func (b *Memory) Publish(agentID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[agentID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
