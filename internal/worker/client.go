// Package worker provides subprocess worker management for bitrag.
// It handles spawning worker processes, the newline-delimited JSON protocol
// between parent and worker, and lifecycle management.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// Environment markers. WorkerEnv is set in every spawned child; IsolateEnv
// is stripped from it so a worker never spawns workers of its own.
const (
	WorkerEnv  = "BITRAG_WORKER"
	IsolateEnv = "BITRAG_ISOLATE"
)

// ErrWorkerExited is returned for requests still pending when the worker
// process goes away.
var ErrWorkerExited = errors.New("worker exited")

// Request is sent from client to worker over stdin as JSON newline.
type Request struct {
	ID        string                   `json:"id"`
	Prompt    string                   `json:"prompt,omitempty"`
	MaxTokens int                      `json:"max_tokens,omitempty"`
	Sampler   *inference.SamplerConfig `json:"sampler,omitempty"`
	Stream    bool                     `json:"stream,omitempty"`
	Cancel    bool                     `json:"cancel,omitempty"`
}

// Response is sent from worker to client over stdout as JSON newline. A
// streaming request yields Token frames followed by one Done frame.
type Response struct {
	ID    string `json:"id"`
	Token string `json:"token,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Val   string `json:"val,omitempty"`
	Err   string `json:"err,omitempty"`
	Stage string `json:"stage,omitempty"`
}

// Client manages communication with one worker
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	log    logging.Logger

	encMu sync.Mutex
	enc   *json.Encoder

	pendingMu sync.Mutex
	pending   map[string]*call
	exited    chan struct{}
	exitErr   error
}

// NewClient starts `<exe> worker` as a child process and connects to it.
func NewClient(log logging.Logger) (*Client, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	// Use absolute path to executable
	exe, _ = filepath.Abs(exe)

	cmd := exec.Command(exe, "worker")
	parentEnv := os.Environ()
	childEnv := make([]string, 0, len(parentEnv)+1)
	for _, e := range parentEnv {
		if strings.HasPrefix(e, IsolateEnv+"=") {
			continue
		}
		childEnv = append(childEnv, e)
	}
	cmd.Env = append(childEnv, WorkerEnv+"=1")
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	c := newClient(stdin, stdout, log)
	c.cmd = cmd
	return c, nil
}

// NewPipeClient connects to a worker reachable through an already open pair
// of streams, such as an in-process Server in tests.
func NewPipeClient(w io.WriteCloser, r io.Reader, log logging.Logger) *Client {
	return newClient(w, r, log)
}

func newClient(w io.WriteCloser, r io.Reader, log logging.Logger) *Client {
	c := &Client{
		stdin:   w,
		stdout:  r,
		log:     logging.OrDiscard(log).With("component", "worker-client"),
		enc:     json.NewEncoder(w),
		pending: make(map[string]*call),
		exited:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// readLoop reads responses from the worker and routes them by request id
func (c *Client) readLoop() {
	dec := json.NewDecoder(bufio.NewReader(c.stdout))
	var loopErr error
	for {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			if !errors.Is(err, io.EOF) {
				loopErr = err
				c.log.Warn("worker decode error", "error", err)
			}
			break
		}

		c.pendingMu.Lock()
		cl, ok := c.pending[resp.ID]
		if ok && resp.Done {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			select {
			case cl.frames <- resp:
			case <-cl.gone:
			}
		}
	}

	c.pendingMu.Lock()
	c.exitErr = loopErr
	c.pending = nil
	c.pendingMu.Unlock()
	close(c.exited)
}

// Do sends req and waits for its final response. Token frames of a
// streaming request are handed to onToken in order; returning
// inference.ErrStopGeneration from it cancels the request on the worker.
func (c *Client) Do(ctx context.Context, req Request, onToken inference.TokenFunc) (string, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Stream = onToken != nil

	cl := &call{frames: make(chan Response, 64), gone: make(chan struct{})}
	c.pendingMu.Lock()
	if c.pending == nil {
		c.pendingMu.Unlock()
		return "", fmt.Errorf("%w: %w", inference.ErrIO, ErrWorkerExited)
	}
	c.pending[req.ID] = cl
	c.pendingMu.Unlock()
	defer c.forget(req.ID, cl)

	if err := c.send(req); err != nil {
		return "", fmt.Errorf("%w: send request: %w", inference.ErrIO, err)
	}

	var sb strings.Builder
	var cbErr error
	cancelled := false
	for {
		select {
		case resp := <-cl.frames:
			if !resp.Done {
				if cancelled {
					continue
				}
				sb.WriteString(resp.Token)
				if onToken == nil {
					continue
				}
				if err := onToken(resp.Token); err != nil {
					cancelled = true
					if !errors.Is(err, inference.ErrStopGeneration) {
						cbErr = err
					}
					_ = c.send(Request{ID: req.ID, Cancel: true})
				}
				continue
			}
			switch {
			case cbErr != nil:
				return sb.String(), cbErr
			case cancelled:
				return sb.String(), nil
			case resp.Err != "":
				return resp.Val, remoteError(resp.Stage, resp.Err)
			}
			return resp.Val, nil

		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				_ = c.send(Request{ID: req.ID, Cancel: true})
			}
			return sb.String(), fmt.Errorf("%w: %w", inference.ErrInterrupted, ctx.Err())

		case <-c.exited:
			// Frames routed before the exit may still be buffered.
			for {
				select {
				case resp := <-cl.frames:
					if !resp.Done {
						sb.WriteString(resp.Token)
						continue
					}
					if resp.Err != "" {
						return resp.Val, remoteError(resp.Stage, resp.Err)
					}
					return resp.Val, nil
				default:
					return sb.String(), fmt.Errorf("%w: %w", inference.ErrIO, c.exitError())
				}
			}
		}
	}
}

func (c *Client) send(req Request) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	return c.enc.Encode(req)
}

func (c *Client) exitError() error {
	if c.exitErr != nil {
		return fmt.Errorf("%w: %w", ErrWorkerExited, c.exitErr)
	}
	return ErrWorkerExited
}

// call is one in-flight request. gone is closed once Do stops reading so
// the read loop never blocks on an abandoned request.
type call struct {
	frames chan Response
	gone   chan struct{}
}

func (c *Client) forget(id string, cl *call) {
	c.pendingMu.Lock()
	if c.pending != nil && c.pending[id] == cl {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	close(cl.gone)
}

// remoteError rebuilds a worker-side failure so errors.Is and
// inference.Stage behave as they would in-process.
func remoteError(stage, msg string) error {
	var kind error
	switch stage {
	case "timeout":
		kind = inference.ErrPoolTimeout
	case "interrupted":
		kind = inference.ErrInterrupted
	case "load":
		kind = inference.ErrModelLoad
	case "tokenize":
		kind = inference.ErrTokenization
	case "decode":
		kind = inference.ErrDecode
	case "sample":
		kind = inference.ErrSampling
	case "config":
		kind = inference.ErrInvalidConfig
	case "io":
		kind = inference.ErrIO
	default:
		return fmt.Errorf("worker: %s", msg)
	}
	return fmt.Errorf("%w: worker: %s", kind, msg)
}

// Close shuts down the worker
func (c *Client) Close() error {
	// closing stdin will cause worker to exit its read loop
	err := c.stdin.Close()
	if c.cmd != nil {
		return c.cmd.Wait()
	}
	<-c.exited
	return err
}

// Pid returns the process ID of the worker subprocess
func (c *Client) Pid() int {
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Pid
	}
	return 0
}
