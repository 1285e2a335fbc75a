// Package providers holds the machinery shared by the per-provider wire
// adapters: the streaming pump that composes a frame decoder with a delta
// extractor, and SSE line helpers.
package providers

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/lifebow/assistantd/internal/core"
)

// Extractor turns one complete protocol unit into a Delta.
type Extractor func(unit string) core.Delta

// Decoder frames raw stream bytes into complete protocol units. The two
// implementations live in internal/framing.
type Decoder interface {
	Feed(p []byte) []string
	Flush() (string, bool)
}

// PumpStream reads body until an explicit end marker, natural EOF, or
// cancellation, framing bytes with dec and extracting fragments with extract.
// Every fragment is forwarded to sink the moment it is decoded; a unit, once
// framed, is processed to completion before the next read, so fragments reach
// the sink in exact decode order. The accumulated full text is returned.
//
// Malformed units are logged and skipped, never fatal: only decoder-confirmed
// complete units arrive here, so a parse failure is an unexpected payload,
// not a chunk-boundary artifact.
func PumpStream(ctx context.Context, provider core.ProviderType, body io.Reader, dec Decoder, extract Extractor, sink core.FragmentSink) (string, error) {
	var full strings.Builder

	process := func(unit string) (done bool) {
		d := extract(unit)
		switch d.Kind {
		case core.DeltaText:
			full.WriteString(d.Text)
			if sink != nil {
				sink(d.Text)
			}
		case core.DeltaEnd:
			return true
		case core.DeltaMalformed:
			slog.Warn("unparseable stream unit", "provider", provider, "unit", clip(unit))
		}
		return false
	}

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, unit := range dec.Feed(buf[:n]) {
				if process(unit) {
					return full.String(), nil
				}
			}
		}
		if err == nil {
			continue
		}
		if err == io.EOF {
			// Offer the retained tail once more so a stream that ends
			// without a final terminator does not drop its last unit.
			if tail, ok := dec.Flush(); ok {
				process(tail)
			}
			return full.String(), nil
		}
		// The HTTP client surfaces an aborted in-flight read through the
		// body; report it as the context's error so cancellation stays
		// distinguishable from transport failure.
		if ctx.Err() != nil {
			return full.String(), ctx.Err()
		}
		return full.String(), core.NewRequestError(provider, 0, "stream read failed: "+err.Error(), err)
	}
}

// SSEData returns the data payload of one SSE line. ok is false for blank
// lines, comments, event-name lines, and anything else that is not a data
// line. The optional single space after the colon is stripped.
func SSEData(line string) (payload string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload = strings.TrimPrefix(line, "data:")
	payload = strings.TrimPrefix(payload, " ")
	return strings.TrimSpace(payload), true
}

func clip(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
