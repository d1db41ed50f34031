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

package agentservice

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cpgames/dagent/internal/log"
	"github.com/cpgames/dagent/internal/message"
)

// AnthropicService streams compaction and request queries through the
// Claude Messages API. It is the subsystem's real Service implementation,
// replacing the teacher's unimplemented AnthropicCompressor reference
// stub (pkg/agent/memory_compressor.go) with a working one.
type AnthropicService struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// DefaultModel is the cheap, fast model used for compaction-style
// summarization calls when the caller does not specify one.
const DefaultModel anthropic.Model = "claude-haiku-4-5-20251001"

// NewAnthropicService builds a Service backed by apiKey. model defaults to
// Claude Haiku, a cheap, fast model appropriate for compaction-style
// summarization calls.
func NewAnthropicService(apiKey string, model anthropic.Model, maxTokens int64) *AnthropicService {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicService{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// StreamQuery issues req against Claude and relays text deltas and tool
// use blocks onto the returned channel, closing it on done/error/
// cancellation.
func (s *AnthropicService) StreamQuery(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent)

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		switch m.Role {
		case message.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)))

	params := anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages:  msgs,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	stream := s.client.Messages.NewStreaming(ctx, params)

	go func() {
		defer close(out)
		defer func() { _ = stream.Close() }()

		var acc anthropic.Message
		for stream.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			event := stream.Current()
			_ = acc.Accumulate(event)

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					out <- StreamEvent{Kind: EventText, Text: delta.Text}
				}
			case anthropic.ContentBlockStartEvent:
				if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					input, _ := block.Input.MarshalJSON()
					out <- StreamEvent{Kind: EventToolUse, ToolName: block.Name, ToolInput: string(input)}
				}
			}
		}

		if err := stream.Err(); err != nil {
			log.Warn("agentservice: anthropic stream error")
			out <- StreamEvent{Kind: EventError, Err: fmt.Errorf("agentservice: anthropic stream: %w", err)}
			return
		}
		out <- StreamEvent{Kind: EventDone}
	}()

	return out, nil
}
