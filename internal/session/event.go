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

package session

import "time"

// Action identifies the kind of lifecycle change an UpdateEvent reports.
type Action string

const (
	ActionReady         Action = "ready"
	ActionMessageAdded  Action = "message_added"
	ActionCompacted     Action = "compacted"
	ActionArchived      Action = "archived"
)

// UpdateEvent is the payload published on the EventBus. Events reference
// entities by id only and never carry the entities themselves.
type UpdateEvent struct {
	SessionID string    `json:"sessionId"`
	FeatureID string    `json:"featureId"`
	TaskID    string    `json:"taskId,omitempty"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
