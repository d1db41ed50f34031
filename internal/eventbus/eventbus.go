// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventbus implements C7: the in-process channel that carries
// session.UpdateEvent from SessionManager/CompactionEngine to whatever is
// watching a feature's sessions (a TUI sidebar, a CLI `watch` command, a
// future websocket bridge). It is built on the pubsub.Event[T] envelope
// the teacher already defines (internal/pubsub), but exposes a callback
// Subscribe rather than the channel-per-subscriber Broker[T] pattern seen
// elsewhere in the retrieved pack (see DESIGN.md): spec §7 asks for
// synchronous, per-publisher-ordered delivery with one subscriber's panic
// never affecting another, which a direct recover()-wrapped callback call
// gives for free and a buffered channel does not (a full buffer would
// either block the publisher or silently drop events).
package eventbus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cpgames/dagent/internal/log"
	"github.com/cpgames/dagent/internal/pubsub"
	"github.com/cpgames/dagent/internal/session"
)

// Handler receives one published event. It must not block for long —
// Publish calls every handler synchronously and in subscription order.
type Handler func(session.UpdateEvent)

// Unsubscribe removes a previously registered Handler. Safe to call more
// than once; the second call is a no-op.
type Unsubscribe func()

// subscriber pairs a Handler with the id Unsubscribe needs to find it.
type subscriber struct {
	id int
	h  Handler
}

// Bus fans session.UpdateEvent out to in-process subscribers. The zero
// value is not usable; construct with New. Safe for concurrent use.
// subscribers is kept as an ordered slice, not a map, because Publish's
// ordering guarantee depends on iterating subscribers in the order they
// were added — Go map iteration order is randomized and cannot provide
// that.
type Bus struct {
	mu          sync.Mutex
	nextID      int
	subscribers []subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers h to receive every event published from this point
// on. The returned Unsubscribe removes it.
func (b *Bus) Subscribe(h Handler) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers = append(b.subscribers, subscriber{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			for i, s := range b.subscribers {
				if s.id == id {
					b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers event to every current subscriber, synchronously and in
// subscription order, isolating each call so a panicking subscriber
// neither takes down the publisher nor stops delivery to the rest.
// Satisfies internal/compaction.Publisher.
func (b *Bus) Publish(event session.UpdateEvent) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.subscribers))
	for i, s := range b.subscribers {
		handlers[i] = s.h
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(h, event)
	}
}

func (b *Bus) dispatch(h Handler, event session.UpdateEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("eventbus: subscriber panicked", zap.Any("recover", r), zap.String("session_id", event.SessionID))
		}
	}()
	h(event)
}

// AsCreatedEvent wraps event for callers that prefer the teacher's generic
// pubsub.Event[T] envelope (e.g. a TUI adapter bridging multiple typed
// broadcasters into one list model).
func AsCreatedEvent(event session.UpdateEvent) pubsub.Event[session.UpdateEvent] {
	return pubsub.NewCreatedEvent(event)
}
