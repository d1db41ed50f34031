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

import "context"

// FakeService is a deterministic, in-memory Service used by tests and by
// the demo CLI, which always compacts through it. Responder receives the
// built request and returns the text to emit as a single chunk; a nil
// Responder echoes a fixed placeholder summary.
type FakeService struct {
	Responder func(req Request) (string, error)
}

// NewFakeService builds a FakeService with the default echo responder.
func NewFakeService() *FakeService {
	return &FakeService{}
}

// StreamQuery emits the responder's text as one chunk followed by done, or
// an error event if the responder fails. It never blocks on ctx beyond the
// initial call, matching the interface's cancellation contract trivially.
func (f *FakeService) StreamQuery(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 2)

	respond := f.Responder
	if respond == nil {
		respond = func(Request) (string, error) { return defaultSummary, nil }
	}

	text, err := respond(req)
	if err != nil {
		out <- StreamEvent{Kind: EventError, Err: err}
		close(out)
		return out, nil
	}

	select {
	case <-ctx.Done():
		close(out)
		return out, ctx.Err()
	default:
	}

	out <- StreamEvent{Kind: EventText, Text: text}
	out <- StreamEvent{Kind: EventDone}
	close(out)
	return out, nil
}

const defaultSummary = "## Critical\n\n- previous work continued\n\n## Important\n\n- none noted\n\n## Minor\n\n- none noted"
