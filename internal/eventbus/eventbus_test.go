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

package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cpgames/dagent/internal/session"
)

func TestPublish_DeliversToAllSubscribersInOrder(t *testing.T) {
	bus := New()
	var order []string

	bus.Subscribe(func(session.UpdateEvent) { order = append(order, "a") })
	bus.Subscribe(func(session.UpdateEvent) { order = append(order, "b") })

	bus.Publish(session.UpdateEvent{SessionID: "s1", Action: session.ActionMessageAdded, Timestamp: time.Now()})

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := New()
	calls := 0
	unsubscribe := bus.Subscribe(func(session.UpdateEvent) { calls++ })

	bus.Publish(session.UpdateEvent{SessionID: "s1"})
	unsubscribe()
	bus.Publish(session.UpdateEvent{SessionID: "s1"})

	assert.Equal(t, 1, calls)
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	bus := New()
	unsubscribe := bus.Subscribe(func(session.UpdateEvent) {})
	assert.NotPanics(t, func() {
		unsubscribe()
		unsubscribe()
	})
}

func TestPublish_PanickingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := New()
	secondCalled := false

	bus.Subscribe(func(session.UpdateEvent) { panic("boom") })
	bus.Subscribe(func(session.UpdateEvent) { secondCalled = true })

	assert.NotPanics(t, func() {
		bus.Publish(session.UpdateEvent{SessionID: "s1"})
	})
	assert.True(t, secondCalled)
}

func TestAsCreatedEvent_WrapsPayload(t *testing.T) {
	event := session.UpdateEvent{SessionID: "s1", Action: session.ActionReady}
	wrapped := AsCreatedEvent(event)
	assert.Equal(t, event, wrapped.Payload)
}
