package core

import (
	"sync"

	"bakehouse/pkg/domain"
)

// ChangeBroadcaster fans committed change sets out to subscribers. The sync
// tracker subscribes here to learn which collections went dirty.
type ChangeBroadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func([]domain.Change)
}

// NewChangeBroadcaster constructs an empty broadcaster.
func NewChangeBroadcaster() *ChangeBroadcaster {
	return &ChangeBroadcaster{subs: make(map[int]func([]domain.Change))}
}

// Subscribe registers fn and returns an unsubscribe function. Callbacks run
// synchronously on the committing goroutine; subscribers must not block.
func (b *ChangeBroadcaster) Subscribe(fn func([]domain.Change)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers a non-empty change set to all subscribers.
func (b *ChangeBroadcaster) Publish(changes []domain.Change) {
	if len(changes) == 0 {
		return
	}
	b.mu.Lock()
	fns := make([]func([]domain.Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(changes)
	}
}
