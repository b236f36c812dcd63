package incidents

import (
	"sync"
	"sync/atomic"
)

// ChangeKind identifies which mutation produced a Change
type ChangeKind string

const (
	ChangeIncidentCreated ChangeKind = "incident_created"
	ChangeIncidentUpdated ChangeKind = "incident_updated"
	ChangeEventAppended   ChangeKind = "event_appended"
	ChangePatchSaved      ChangeKind = "patch_saved"
)

// Change describes one applied mutation. Only the field matching Kind is set,
// except Incident which is also set for incident_updated.
type Change struct {
	Kind       ChangeKind `json:"type"`
	IncidentID string     `json:"incident_id"`
	Incident   *Incident  `json:"incident,omitempty"`
	Event      *Event     `json:"event,omitempty"`
	Patch      *Patch     `json:"patch,omitempty"`
}

type subscription struct {
	fn     func(Change)
	active atomic.Bool
}

// Notifier fans a Change out to every registered subscriber, synchronously and
// in registration order. Publish rounds never interleave.
//
// Subscribers must not mutate the store from inside the callback; anything
// that blocks should be handed off to another goroutine.
type Notifier struct {
	mu   sync.Mutex
	subs []*subscription

	// dispatchMu serializes publish rounds
	dispatchMu sync.Mutex
}

// NewNotifier creates an empty Notifier
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is safe to call more than once and from inside a callback.
func (n *Notifier) Subscribe(fn func(Change)) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s == sub {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers c to the subscribers registered when the round starts.
// A subscriber removed mid-round is skipped if it has not been called yet.
func (n *Notifier) Publish(c Change) {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()

	n.mu.Lock()
	snapshot := make([]*subscription, len(n.subs))
	copy(snapshot, n.subs)
	n.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		sub.fn(c)
	}
}

// Len returns the number of active subscribers
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
