// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

const (
	// MaxLineSize is the longest line the decoder will emit (1MB).
	// Longer lines are dropped whole.
	MaxLineSize = 1 << 20

	// decodeBufSize is the scratch size for one transform pass.
	decodeBufSize = 4096
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder reassembles complete lines from a byte stream delivered in
// arbitrary chunks. A Decoder is not safe for concurrent use; one read
// loop owns it.
type Decoder struct {
	utf8    transform.Transformer
	scratch []byte

	// carry holds the leading bytes of a code point split across chunks.
	carry []byte

	// pending is the unterminated tail of the text seen so far.
	pending string

	// overflow is set while discarding the remainder of an oversized line.
	overflow bool
}

// NewDecoder creates a decoder ready for a new stream.
func NewDecoder() *Decoder {
	return &Decoder{
		utf8:    unicode.UTF8.NewDecoder(),
		scratch: make([]byte, decodeBufSize),
	}
}

// Feed decodes one chunk and returns every line it completed, in order.
// The trailing fragment with no line terminator is retained for the next
// call. Invalid UTF-8 is replaced with U+FFFD. Feed never fails.
func (d *Decoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	return d.split(d.decode(chunk))
}

// Close ends the stream. The pending fragment is discarded, never emitted,
// and its length in bytes is returned.
func (d *Decoder) Close() int {
	dropped := len(d.pending) + len(d.carry)
	d.Reset()
	return dropped
}

// Reset clears all carried state.
func (d *Decoder) Reset() {
	d.carry = nil
	d.pending = ""
	d.overflow = false
	d.utf8.Reset()
}

// Pending returns the unterminated fragment currently held.
func (d *Decoder) Pending() string {
	return d.pending
}

// decode converts chunk to text, holding back an incomplete trailing
// code point until the rest of it arrives.
func (d *Decoder) decode(chunk []byte) string {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}

	var out strings.Builder
	out.Grow(len(src))
	for len(src) > 0 {
		nDst, nSrc, err := d.utf8.Transform(d.scratch, src, false)
		out.Write(d.scratch[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
		case errors.Is(err, transform.ErrShortDst):
		case errors.Is(err, transform.ErrShortSrc):
			// A truncated lead byte followed by a byte that cannot continue
			// it is invalid now, not short.
			if utf8.FullRune(src) {
				n := 1
				for n < len(src) && !utf8.RuneStart(src[n]) {
					n++
				}
				nDst, _, _ := d.utf8.Transform(d.scratch, src[:n], true)
				out.Write(d.scratch[:nDst])
				src = src[n:]
				continue
			}
			d.carry = append([]byte(nil), src...)
			src = nil
		default:
			// Unexpected transformer failure: substitute and move on.
			if len(src) > 0 {
				out.WriteRune(utf8.RuneError)
				src = src[1:]
			}
		}
	}
	return out.String()
}

// split appends text to the pending fragment and cuts off complete lines.
func (d *Decoder) split(text string) []string {
	buf := d.pending + text
	parts := strings.Split(buf, "\n")
	d.pending = parts[len(parts)-1]

	lines := make([]string, 0, len(parts)-1)
	for _, line := range parts[:len(parts)-1] {
		if d.overflow {
			// Tail of an oversized line: drop it and resume.
			d.overflow = false
			continue
		}
		if len(line) > MaxLineSize {
			continue
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}

	if len(d.pending) > MaxLineSize {
		d.pending = ""
		d.overflow = true
	}
	return lines
}
