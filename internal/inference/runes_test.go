package inference_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/LiboWorks/bitrag/internal/inference"
)

func TestRuneBufferHoldsSplitCharacters(t *testing.T) {
	var b inference.RuneBuffer
	text := "héllo 日本"
	var got []string
	for i := 0; i < len(text); i++ {
		if out := b.Push(text[i : i+1]); out != "" {
			got = append(got, out)
		}
	}
	if rest := b.Flush(); rest != "" {
		got = append(got, rest)
	}

	assert.Equal(t, text, strings.Join(got, ""))
	for _, piece := range got {
		assert.True(t, utf8.ValidString(piece), "piece %q is not valid UTF-8", piece)
	}
	assert.Equal(t, 0, b.Pending())
}

func TestRuneBufferCases(t *testing.T) {
	tests := []struct {
		name    string
		pieces  []string
		emitted string
		pending int
	}{
		{"ascii", []string{"ab", "c"}, "abc", 0},
		{"whole rune", []string{"日"}, "日", 0},
		{"half of two-byte rune", []string{"a\xc3"}, "a", 1},
		{"two thirds of three-byte rune", []string{"\xe6\x97"}, "", 2},
		{"completed across pieces", []string{"\xe6", "\x97", "\xa5!"}, "日!", 0},
		{"stray continuation byte", []string{"\x97"}, "\x97", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b inference.RuneBuffer
			var sb strings.Builder
			for _, p := range tt.pieces {
				sb.WriteString(b.Push(p))
			}
			assert.Equal(t, tt.emitted, sb.String())
			assert.Equal(t, tt.pending, b.Pending())
		})
	}
}

func TestRuneBufferFlushIncomplete(t *testing.T) {
	var b inference.RuneBuffer
	assert.Equal(t, "", b.Push("\xe6\x97"))
	assert.Equal(t, "\xe6\x97", b.Flush())
	assert.Equal(t, "", b.Flush())
}
