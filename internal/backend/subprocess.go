package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// SubprocessName is the Name() of the external-process backend.
const SubprocessName = "subprocess"

// CLIPathEnv overrides llama-cli discovery.
const CLIPathEnv = "BITNET_CLI_PATH"

// SubprocessConfig holds configuration for the external-process backend.
type SubprocessConfig struct {
	ModelPath  string
	BinaryPath string // empty = discover
	NCtx       int
	Threads    int
	Logger     logging.Logger
}

// Subprocess runs llama-cli once per request and reads the generated text
// from its standard output.
type Subprocess struct {
	bin       string
	modelPath string
	nCtx      int
	threads   int
	log       logging.Logger
}

// cliCandidates lists conventional llama-cli install locations in search order.
func cliCandidates() []string {
	var out []string
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out,
			filepath.Join(home, ".local", "bin", "llama-cli-bitnet"),
			filepath.Join(home, ".local", "bin", "llama-cli"),
			filepath.Join(home, ".local", "share", "bitnet.cpp", "build", "bin", "llama-cli"),
		)
	}
	out = append(out,
		filepath.Join("bitnet.cpp", "build", "bin", "llama-cli"),
		filepath.Join("BitNet", "build", "bin", "llama-cli"),
		"/usr/local/bin/llama-cli-bitnet",
	)
	if conda := os.Getenv("CONDA_PREFIX"); conda != "" {
		out = append(out, filepath.Join(conda, "bin", "llama-cli"))
	}
	return out
}

// FindCLI locates llama-cli: the BITNET_CLI_PATH override first, then the
// conventional install locations, then $PATH.
func FindCLI() (string, error) {
	if p := os.Getenv(CLIPathEnv); p != "" {
		if isExecutable(p) {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s=%s is not an executable file", inference.ErrBackendInit, CLIPathEnv, p)
	}
	for _, p := range cliCandidates() {
		if isExecutable(p) {
			return p, nil
		}
	}
	for _, name := range []string{"llama-cli-bitnet", "llama-cli"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: llama-cli not found (set %s)", inference.ErrBackendInit, CLIPathEnv)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0111 != 0
}

// NewSubprocess validates the binary and the model file.
func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	bin := cfg.BinaryPath
	if bin == "" {
		var err error
		if bin, err = FindCLI(); err != nil {
			return nil, err
		}
	} else if !isExecutable(bin) {
		return nil, fmt.Errorf("%w: %s is not an executable file", inference.ErrBackendInit, bin)
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", inference.ErrBackendInit)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %w", inference.ErrBackendInit, &inference.ModelLoadError{Path: cfg.ModelPath, Err: err})
	}

	nCtx := cfg.NCtx
	if nCtx <= 0 {
		nCtx = inference.DefaultContextParams().NCtx
	}
	s := &Subprocess{
		bin:       bin,
		modelPath: cfg.ModelPath,
		nCtx:      nCtx,
		threads:   cfg.Threads,
		log:       logging.OrDiscard(cfg.Logger).With("backend", SubprocessName),
	}
	s.log.Info("subprocess backend ready", "binary", bin, "model", cfg.ModelPath)
	return s, nil
}

// Args builds the llama-cli command line for one request.
func (s *Subprocess) Args(prompt string, maxTokens int, cfg inference.SamplerConfig, stream bool) []string {
	args := []string{
		"-m", s.modelPath,
		"-p", prompt,
		"-n", strconv.Itoa(maxTokensOrDefault(maxTokens)),
		"-c", strconv.Itoa(s.nCtx),
		"--temp", formatFloat(cfg.Temperature),
		"--top-k", strconv.Itoa(cfg.TopK),
		"--top-p", formatFloat(cfg.TopP),
		"--repeat-penalty", formatFloat(cfg.RepeatPenalty),
		"--no-display-prompt",
	}
	if s.threads > 0 {
		args = append(args, "-t", strconv.Itoa(s.threads))
	}
	if cfg.Seed != 0 {
		args = append(args, "-s", strconv.FormatUint(cfg.Seed, 10))
	}
	if stream {
		args = append(args, "--log-disable")
	}
	return args
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

func (s *Subprocess) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Env = append(os.Environ(), "LLAMA_LOG_DISABLE=1")
	// Grandchildren may hold the pipes open after a kill.
	cmd.WaitDelay = 500 * time.Millisecond
	return cmd
}

// Generate implements Backend.
func (s *Subprocess) Generate(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := s.command(ctx, s.Args(prompt, maxTokens, cfg, false))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", s.runError(ctx, err, stderr.String())
	}
	text := strings.TrimPrefix(stdout.String(), prompt)
	return strings.TrimSpace(text), nil
}

// GenerateStreaming implements Backend. Output is forwarded line by line;
// a leading run of lines repeating the prompt's lines in order is skipped.
func (s *Subprocess) GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stderr bytes.Buffer
	cmd := s.command(runCtx, s.Args(prompt, maxTokens, cfg, true))
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: %w", inference.ErrIO, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: start %s: %w", inference.ErrIO, s.bin, err)
	}

	echo := promptLines(prompt)
	echoed := 0
	skipping := true
	stopped := false
	var out strings.Builder
	var cbErr error

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if skipping {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if echoed < len(echo) && trimmed == echo[echoed] {
				echoed++
				continue
			}
			skipping = false
		}

		piece := line
		if out.Len() > 0 {
			piece = "\n" + line
		}
		out.WriteString(piece)
		if onToken == nil {
			continue
		}
		if err := onToken(piece); err != nil {
			if !errors.Is(err, inference.ErrStopGeneration) {
				cbErr = err
			}
			stopped = true
			cancel()
			break
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	switch {
	case cbErr != nil:
		return out.String(), cbErr
	case stopped:
		return out.String(), nil
	case waitErr != nil:
		return out.String(), s.runError(ctx, waitErr, stderr.String())
	case scanErr != nil:
		return out.String(), fmt.Errorf("%w: read output: %w", inference.ErrIO, scanErr)
	}
	return out.String(), nil
}

// promptLines returns the prompt's non-blank lines, trimmed, in order.
func promptLines(prompt string) []string {
	var lines []string
	for _, l := range strings.Split(prompt, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// runError maps a failed run to the error taxonomy: cancellation is an
// interruption, a non-zero exit is a decode failure.
func (s *Subprocess) runError(ctx context.Context, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", inference.ErrInterrupted, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := lastLine(stderr)
		if msg == "" {
			msg = exitErr.Error()
		}
		return &inference.DecodeError{Code: int32(exitErr.ExitCode()), Err: fmt.Errorf("llama-cli: %s", msg)}
	}
	return fmt.Errorf("%w: run %s: %w", inference.ErrIO, s.bin, err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// Chat implements Backend.
func (s *Subprocess) Chat(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return s.Generate(ctx, inference.FormatChatPrompt(system, user), maxTokens, cfg)
}

// Name implements Backend.
func (s *Subprocess) Name() string { return SubprocessName }

// IsReady reports whether the binary and the model file are still present.
func (s *Subprocess) IsReady() bool {
	if !isExecutable(s.bin) {
		return false
	}
	_, err := os.Stat(s.modelPath)
	return err == nil
}

// Version runs the binary with --version.
func (s *Subprocess) Version() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.bin, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s --version: %w", inference.ErrIO, s.bin, err)
	}
	first := ""
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "version") {
			return "bitnet.cpp " + line, nil
		}
		if first == "" {
			first = line
		}
	}
	return "bitnet.cpp " + first, nil
}

// Binary returns the resolved llama-cli path.
func (s *Subprocess) Binary() string { return s.bin }

// Close implements Backend.
func (s *Subprocess) Close() error { return nil }
