package google

import (
	"github.com/tidwall/gjson"

	"github.com/lifebow/assistantd/internal/core"
)

// ExtractDelta extracts the incremental text from one balanced-brace unit of
// a streamGenerateContent response. Units without a candidate text part
// (safety metadata, usage summaries) yield DeltaNone; the stream has no
// explicit end marker, it simply reaches EOF.
func ExtractDelta(unit string) core.Delta {
	if !gjson.Valid(unit) {
		return core.Delta{Kind: core.DeltaMalformed}
	}

	text := gjson.Get(unit, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return core.Delta{Kind: core.DeltaNone}
	}
	return core.Delta{Kind: core.DeltaText, Text: text.String()}
}
