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

// Package agentservice defines the Agent Service capability the core
// consumes (spec §6) and a real Anthropic-backed implementation. The core
// never imports a concrete implementation directly — CompactionEngine and
// SessionManager depend on the Service interface only.
package agentservice

import (
	"context"

	"github.com/cpgames/dagent/internal/message"
)

// EventKind discriminates a StreamEvent's variant.
type EventKind string

const (
	EventText       EventKind = "text"
	EventToolUse    EventKind = "tool_use"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// StreamEvent is one element of the lazy, finite, non-restartable sequence
// StreamQuery produces (spec §9 "Streaming async iteration").
type StreamEvent struct {
	Kind       EventKind
	Text       string // EventText
	ToolName   string // EventToolUse / EventToolResult
	ToolInput  string // EventToolUse
	ToolResult string // EventToolResult
	Err        error  // EventError
}

// Request is one streamQuery call's input.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Messages     []message.Message
}

// Service is the capability CompactionEngine and SessionManager consume.
// StreamQuery is cancellable via ctx; on cancellation the implementation
// must stop producing promptly and close the returned channel.
type Service interface {
	StreamQuery(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// CollectText drains a StreamEvent channel, concatenating every text chunk
// until done or error. It is the helper CompactionEngine uses when it only
// needs the final text, not the individual streaming events.
func CollectText(events <-chan StreamEvent) (string, error) {
	var text string
	for ev := range events {
		switch ev.Kind {
		case EventText:
			text += ev.Text
		case EventError:
			return "", ev.Err
		case EventDone:
			return text, nil
		}
	}
	return text, nil
}
