package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// Handler is the interface that must be implemented to handle worker requests
type Handler interface {
	// GenerateStreaming processes a prompt, reporting pieces to onToken when
	// it is non-nil, and returns the generated text
	GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error)
}

// Server runs inside a spawned worker process and handles incoming requests.
// Requests run concurrently; the handler is expected to bound its own
// concurrency (the native backend does so through its context pool).
type Server struct {
	handler Handler
	log     logging.Logger

	writeMu sync.Mutex
	enc     *json.Encoder
	bw      *bufio.Writer

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a new worker server with the given handler
func NewServer(handler Handler, log logging.Logger) *Server {
	return &Server{
		handler:  handler,
		log:      logging.OrDiscard(log).With("component", "worker", "pid", os.Getpid()),
		inflight: make(map[string]context.CancelFunc),
	}
}

// Run reads requests from r and writes responses to w until r is exhausted
// or ctx is cancelled. It waits for in-flight requests before returning.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.log.Info("worker starting")
	defer s.log.Info("worker exiting")

	s.bw = bufio.NewWriter(w)
	s.enc = json.NewEncoder(s.bw)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.write(Response{ID: req.ID, Done: true, Err: fmt.Sprintf("invalid request: %v", err), Stage: "config"})
			continue
		}
		if req.Cancel {
			s.cancel(req.ID)
			continue
		}

		reqCtx, reqCancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.inflight[req.ID] = reqCancel
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.cancel(req.ID)
			s.handle(reqCtx, req)
		}()
	}
	err := scanner.Err()
	if err != nil {
		s.log.Error("worker input error", "error", err)
		cancel()
	}
	s.wg.Wait()
	return err
}

func (s *Server) handle(ctx context.Context, req Request) {
	cfg := inference.DefaultSamplerConfig()
	if req.Sampler != nil {
		cfg = *req.Sampler
	}

	var onToken inference.TokenFunc
	if req.Stream {
		onToken = func(piece string) error {
			return s.write(Response{ID: req.ID, Token: piece})
		}
	}

	val, err := s.handler.GenerateStreaming(ctx, req.Prompt, req.MaxTokens, cfg, onToken)
	resp := Response{ID: req.ID, Done: true, Val: val}
	if err != nil {
		resp.Err = err.Error()
		resp.Stage = inference.Stage(err)
		s.log.Warn("request failed", "id", req.ID, "stage", resp.Stage, "error", err)
	}
	_ = s.write(resp)
}

func (s *Server) cancel(id string) {
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	delete(s.inflight, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Server) write(resp Response) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		return err
	}
	return s.bw.Flush()
}

// IsWorkerProcess returns true if the current process is running as a worker
func IsWorkerProcess() bool {
	return os.Getenv(WorkerEnv) == "1"
}
