// Package framing turns raw streaming bytes into complete protocol units.
//
// A decoder owns the bytes it has received but not yet resolved into a unit.
// The invariant across Feed calls: what is removed from the buffer is exactly
// the prefix that was consumed into emitted units. Nothing is dropped, nothing
// is emitted twice, and the same buffer state plus the same input always
// yields the same units and the same new buffer state.
package framing

import "bytes"

// LineDecoder frames line-oriented SSE streams. Feed returns every complete
// line found so far; an unterminated trailing segment is retained until the
// next Feed or the final Flush.
type LineDecoder struct {
	tail []byte
}

// Feed appends p to the retained tail and returns every newline-terminated
// line, without terminators. A trailing carriage return is stripped so CRLF
// streams frame identically to LF streams.
func (d *LineDecoder) Feed(p []byte) []string {
	d.tail = append(d.tail, p...)

	var units []string
	for {
		i := bytes.IndexByte(d.tail, '\n')
		if i < 0 {
			break
		}
		units = append(units, string(bytes.TrimSuffix(d.tail[:i], []byte("\r"))))
		d.tail = d.tail[i+1:]
	}
	return units
}

// Flush returns the retained unterminated tail, if any, as one final unit.
// Called once at end of input so a stream that omits the final newline does
// not silently lose its last event.
func (d *LineDecoder) Flush() (string, bool) {
	if len(d.tail) == 0 {
		return "", false
	}
	unit := string(bytes.TrimSuffix(d.tail, []byte("\r")))
	d.tail = nil
	return unit, true
}
