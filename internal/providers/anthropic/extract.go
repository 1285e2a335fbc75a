package anthropic

import (
	"github.com/tidwall/gjson"

	"github.com/lifebow/assistantd/internal/core"
	"github.com/lifebow/assistantd/internal/providers"
)

// ExtractDelta extracts the incremental text from one SSE line of an
// Anthropic stream. The event type discriminator selects the handling:
// content_block_delta events carry text, message_stop ends the stream, and
// everything else (message_start, ping, content_block_start, ...) is a no-op.
func ExtractDelta(line string) core.Delta {
	payload, ok := providers.SSEData(line)
	if !ok {
		return core.Delta{Kind: core.DeltaNone}
	}
	if !gjson.Valid(payload) {
		return core.Delta{Kind: core.DeltaMalformed}
	}

	switch gjson.Get(payload, "type").String() {
	case "content_block_delta":
		text := gjson.Get(payload, "delta.text")
		if !text.Exists() {
			return core.Delta{Kind: core.DeltaNone}
		}
		return core.Delta{Kind: core.DeltaText, Text: text.String()}
	case "message_stop":
		return core.Delta{Kind: core.DeltaEnd}
	default:
		return core.Delta{Kind: core.DeltaNone}
	}
}
