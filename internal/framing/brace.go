package framing

// BraceDecoder frames a stream that is an unterminated, comma-separated JSON
// array of objects with no reliable top-level delimiter. It scans for
// balanced-brace objects: whenever the brace depth returns to zero after
// having been positive, the substring from the matching open brace to that
// close brace, inclusive, is one complete unit.
//
// The scanner is string-literal aware: quote state and backslash escapes are
// tracked, so literal '{' or '}' characters inside a string value never
// affect the depth count. Payload text routinely contains braces; counting
// them would truncate or merge units.
type BraceDecoder struct {
	buf []byte // retained bytes not yet consumed into emitted units

	// Scan state over buf. pos is the next unexamined index; start is the
	// index of the open brace of the unit in progress, or -1 between units.
	pos      int
	start    int
	depth    int
	inString bool
	escaped  bool
}

// NewBraceDecoder returns a decoder ready to receive the start of a stream.
func NewBraceDecoder() *BraceDecoder {
	return &BraceDecoder{start: -1}
}

// Feed appends p to the retained buffer and returns every complete
// balanced-brace object found. Fully consumed text up to the last completed
// unit is discarded from the buffer; everything after it, including unmatched
// trailing opens, is retained.
func (d *BraceDecoder) Feed(p []byte) []string {
	d.buf = append(d.buf, p...)

	var units []string
	consumed := -1 // one past the close brace of the last emitted unit
	for ; d.pos < len(d.buf); d.pos++ {
		c := d.buf[d.pos]

		if d.inString {
			switch {
			case d.escaped:
				d.escaped = false
			case c == '\\':
				d.escaped = true
			case c == '"':
				d.inString = false
			}
			continue
		}

		switch c {
		case '"':
			if d.depth > 0 {
				d.inString = true
			}
		case '{':
			if d.depth == 0 {
				d.start = d.pos
			}
			d.depth++
		case '}':
			if d.depth == 0 {
				continue // stray close outside any unit
			}
			d.depth--
			if d.depth == 0 {
				units = append(units, string(d.buf[d.start:d.pos+1]))
				consumed = d.pos + 1
				d.start = -1
			}
		}
	}

	if consumed >= 0 {
		d.buf = append(d.buf[:0:0], d.buf[consumed:]...)
		d.pos -= consumed
		if d.start >= 0 {
			d.start -= consumed
		}
	}
	return units
}

// Flush reports any final complete unit at end of input. The scan never lags
// the buffer, so a brace stream has nothing further to offer: a retained tail
// here is an unterminated object that cannot be completed.
func (d *BraceDecoder) Flush() (string, bool) {
	return "", false
}
