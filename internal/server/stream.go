package server

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// sseWriter writes server-sent events, flushing after each one. Headers go
// out with the first event so a failure before it can still be answered
// with a plain JSON error.
type sseWriter struct {
	w       http.ResponseWriter
	flusher func()
	started bool
}

func newSSEWriter(c *echo.Context) (*sseWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &sseWriter{w: res, flusher: flusher.Flush}, nil
}

func (s *sseWriter) begin() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// Event sends one named event. An empty name sends a bare data frame.
func (s *sseWriter) Event(name string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.begin()
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher()
	return nil
}

// Done sends the OpenAI end-of-stream marker.
func (s *sseWriter) Done() error {
	s.begin()
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher()
	return nil
}

// Started reports whether any event went out, after which the status code
// can no longer change.
func (s *sseWriter) Started() bool { return s.started }

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, fmt.Errorf("invalid JSON body: %w", err)
	}
	return out, nil
}
