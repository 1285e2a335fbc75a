package openai

import (
	"github.com/tidwall/gjson"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/providers"
)

// doneSentinel terminates an OpenAI-style SSE stream. It is matched literally
// and never parsed as JSON.
const doneSentinel = "[DONE]"

// ExtractDelta extracts the incremental text from one SSE line of an
// OpenAI-compatible stream. Lines without a data: prefix, heartbeats, and
// metadata-only chunks yield DeltaNone.
func ExtractDelta(line string) core.Delta {
	payload, ok := providers.SSEData(line)
	if !ok {
		return core.Delta{Kind: core.DeltaNone}
	}
	if payload == doneSentinel {
		return core.Delta{Kind: core.DeltaEnd}
	}
	if !gjson.Valid(payload) {
		return core.Delta{Kind: core.DeltaMalformed}
	}

	content := gjson.Get(payload, "choices.0.delta.content")
	if !content.Exists() {
		return core.Delta{Kind: core.DeltaNone}
	}
	return core.Delta{Kind: core.DeltaText, Text: content.String()}
}
