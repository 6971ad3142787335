package inference

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// TokenFunc receives generated text pieces in order. Returning
// ErrStopGeneration ends generation early without an error; any other error
// aborts it.
type TokenFunc func(piece string) error

// ErrStopGeneration is returned by a TokenFunc to request a clean stop.
var ErrStopGeneration = errors.New("stop generation")

// ApplyStopSequences truncates text at the earliest occurrence of any
// non-empty stop sequence.
func ApplyStopSequences(text string, stops []string) string {
	if idx := earliestStop(text, stops); idx >= 0 {
		return text[:idx]
	}
	return text
}

func earliestStop(text string, stops []string) int {
	best := -1
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// StopStreamer forwards streamed pieces while withholding the trailing bytes
// that could still be the start of a stop sequence. Once a stop sequence is
// seen it emits the text before it and reports ErrStopGeneration, so callers
// never receive any part of a stop sequence.
type StopStreamer struct {
	stops   []string
	hold    int
	emit    TokenFunc
	pending string
	out     strings.Builder
	stopped bool
}

// NewStopStreamer wraps emit. With no stop sequences pieces pass through.
func NewStopStreamer(stops []string, emit TokenFunc) *StopStreamer {
	s := &StopStreamer{emit: emit}
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		s.stops = append(s.stops, stop)
		if len(stop)-1 > s.hold {
			s.hold = len(stop) - 1
		}
	}
	return s
}

// Write accepts the next generated piece.
func (s *StopStreamer) Write(piece string) error {
	if s.stopped {
		return ErrStopGeneration
	}
	s.pending += piece
	if idx := earliestStop(s.pending, s.stops); idx >= 0 {
		s.stopped = true
		if err := s.forward(s.pending[:idx]); err != nil {
			return err
		}
		s.pending = ""
		return ErrStopGeneration
	}

	safe := len(s.pending) - s.hold
	for safe > 0 && safe < len(s.pending) && !utf8.RuneStart(s.pending[safe]) {
		safe--
	}
	if safe <= 0 {
		return nil
	}
	chunk := s.pending[:safe]
	s.pending = s.pending[safe:]
	return s.forward(chunk)
}

// Flush emits whatever is still withheld. Call it once generation ends.
func (s *StopStreamer) Flush() error {
	if s.stopped || s.pending == "" {
		return nil
	}
	chunk := s.pending
	s.pending = ""
	return s.forward(chunk)
}

// Stopped reports whether a stop sequence was seen.
func (s *StopStreamer) Stopped() bool { return s.stopped }

// Text returns everything forwarded so far.
func (s *StopStreamer) Text() string { return s.out.String() }

func (s *StopStreamer) forward(chunk string) error {
	if chunk == "" {
		return nil
	}
	s.out.WriteString(chunk)
	if s.emit == nil {
		return nil
	}
	return s.emit(chunk)
}
