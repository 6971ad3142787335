package inference

import "unicode/utf8"

// RuneBuffer joins token pieces and releases only whole UTF-8 sequences.
// Byte-level vocabularies split multi-byte characters across tokens, and a
// piece holding half a character would be replaced with U+FFFD as soon as
// it is encoded as JSON.
type RuneBuffer struct {
	pending []byte
}

// Push appends piece and returns the complete prefix of everything held.
func (b *RuneBuffer) Push(piece string) string {
	b.pending = append(b.pending, piece...)
	n := completePrefix(b.pending)
	if n == 0 {
		return ""
	}
	out := string(b.pending[:n])
	b.pending = append(b.pending[:0], b.pending[n:]...)
	return out
}

// Flush returns whatever is still held, complete or not.
func (b *RuneBuffer) Flush() string {
	out := string(b.pending)
	b.pending = b.pending[:0]
	return out
}

// Pending reports how many bytes are held back.
func (b *RuneBuffer) Pending() int { return len(b.pending) }

// completePrefix returns the length of p without a trailing incomplete
// sequence. Invalid bytes count as complete so they are never held forever.
func completePrefix(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if p[i] < utf8.RuneSelf {
			return len(p)
		}
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return len(p)
			}
			return i
		}
	}
	return len(p)
}
