// Copyright 2026 The Tripchat Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import "sync"

// Subscription is a registered listener's handle. Close detaches the
// listener; it is safe to call more than once. Every On/OnState call
// must be paired with a Close on unmount, or the handler survives the
// component that registered it and fires twice after a remount.
type Subscription struct {
	once   sync.Once
	detach func()
}

// Close detaches the listener.
func (s *Subscription) Close() {
	s.once.Do(s.detach)
}

// listenerTable holds event listeners keyed by event type. Dispatch
// happens from the read pump goroutine only, so listeners for one
// event type run in registration order and events run in
// server-emission order.
type listenerTable struct {
	mu     sync.Mutex
	nextID int
	byType map[string]map[int]func(Event)
	order  map[string][]int
}

func newListenerTable() *listenerTable {
	return &listenerTable{
		byType: make(map[string]map[int]func(Event)),
		order:  make(map[string][]int),
	}
}

func (t *listenerTable) add(eventType string, handler func(Event)) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	if t.byType[eventType] == nil {
		t.byType[eventType] = make(map[int]func(Event))
	}
	t.byType[eventType][id] = handler
	t.order[eventType] = append(t.order[eventType], id)
	return &Subscription{detach: func() { t.remove(eventType, id) }}
}

func (t *listenerTable) remove(eventType string, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byType[eventType], id)
}

// dispatch calls every listener registered for the event's type. The
// listener snapshot is taken under the lock; the calls run outside it
// so a handler may register or close subscriptions.
func (t *listenerTable) dispatch(event Event) {
	t.mu.Lock()
	ids := t.order[event.Type]
	handlers := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		if handler, ok := t.byType[event.Type][id]; ok {
			handlers = append(handlers, handler)
		}
	}
	t.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (t *listenerTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byType = make(map[string]map[int]func(Event))
	t.order = make(map[string][]int)
}

// stateTable holds connection-state watchers.
type stateTable struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]func(State)
}

func newStateTable() *stateTable {
	return &stateTable{byID: make(map[int]func(State))}
}

func (t *stateTable) add(handler func(State)) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.byID[id] = handler
	return &Subscription{detach: func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.byID, id)
	}}
}

func (t *stateTable) notify(state State) {
	t.mu.Lock()
	handlers := make([]func(State), 0, len(t.byID))
	for _, handler := range t.byID {
		handlers = append(handlers, handler)
	}
	t.mu.Unlock()

	for _, handler := range handlers {
		handler(state)
	}
}

func (t *stateTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[int]func(State))
}
