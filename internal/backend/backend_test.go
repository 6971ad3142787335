package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/LiboWorks/bitrag/internal/inference"
)

func TestBackendRegistry(t *testing.T) {
	registry := NewRegistry()

	// Register a mock backend
	mockBackend := &mockBackend{}
	registry.Register("mock", mockBackend)

	// Retrieve it
	retrieved, ok := registry.Get("mock")
	if !ok || retrieved == nil {
		t.Error("failed to retrieve registered backend")
	}

	// Non-existent backend
	notFound, ok := registry.Get("nonexistent")
	if ok || notFound != nil {
		t.Error("expected not found for non-existent backend")
	}
}

func TestDefaultBackend(t *testing.T) {
	registry := NewRegistry()

	// Register first backend - should become default
	mock1 := &mockBackend{name: "mock1"}
	registry.Register("mock1", mock1)

	// Get with empty name should return default
	retrieved, ok := registry.Get("")
	if !ok || retrieved == nil {
		t.Fatal("failed to get default backend")
	}
	if retrieved.Name() != "mock1" {
		t.Errorf("expected mock1, got %s", retrieved.Name())
	}

	// Register second and set as default
	mock2 := &mockBackend{name: "mock2"}
	registry.Register("mock2", mock2)
	registry.SetDefault("mock2")

	retrieved, _ = registry.Get("")
	if retrieved.Name() != "mock2" {
		t.Errorf("expected mock2 as default, got %s", retrieved.Name())
	}

	if got := strings.Join(registry.List(), ","); got != "mock1,mock2" {
		t.Errorf("List() = %q, want %q", got, "mock1,mock2")
	}
}

func TestRegistryClose(t *testing.T) {
	registry := NewRegistry()
	ok1 := &mockBackend{name: "ok"}
	bad := &mockBackend{name: "bad", closeErr: errors.New("busy")}
	registry.Register("ok", ok1)
	registry.Register("bad", bad)

	err := registry.Close()
	if err == nil || !strings.Contains(err.Error(), "close bad: busy") {
		t.Errorf("Close() error = %v, want close bad: busy", err)
	}
	if !ok1.closed || !bad.closed {
		t.Error("Close() should close every backend")
	}
	if len(registry.List()) != 0 {
		t.Error("registry should be empty after Close()")
	}
	if _, ok := registry.Get(""); ok {
		t.Error("default should be cleared after Close()")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"native", TypeNative},
		{"FFI", TypeNative},
		{"subprocess", TypeSubprocess},
		{"cli", TypeSubprocess},
		{" process ", TypeSubprocess},
		{"", TypeAuto},
		{"auto", TypeAuto},
		{"default", TypeAuto},
		{"openai", TypeOpenAI},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseType("gpu"); !errors.Is(err, inference.ErrInvalidConfig) {
		t.Errorf("ParseType(gpu) error = %v, want ErrInvalidConfig", err)
	}
}

func TestMaxTokensOrDefault(t *testing.T) {
	if got := maxTokensOrDefault(0); got != DefaultMaxTokens {
		t.Errorf("maxTokensOrDefault(0) = %d, want %d", got, DefaultMaxTokens)
	}
	if got := maxTokensOrDefault(-3); got != DefaultMaxTokens {
		t.Errorf("maxTokensOrDefault(-3) = %d, want %d", got, DefaultMaxTokens)
	}
	if got := maxTokensOrDefault(12); got != 12 {
		t.Errorf("maxTokensOrDefault(12) = %d, want 12", got)
	}
}

// Mock implementations for testing
type mockBackend struct {
	name     string
	closeErr error
	closed   bool
}

func (m *mockBackend) Generate(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return "mock response", nil
}

func (m *mockBackend) GenerateStreaming(ctx context.Context, prompt string, maxTokens int, cfg inference.SamplerConfig, onToken inference.TokenFunc) (string, error) {
	if onToken != nil {
		if err := onToken("mock response"); err != nil && !errors.Is(err, inference.ErrStopGeneration) {
			return "", err
		}
	}
	return "mock response", nil
}

func (m *mockBackend) Chat(ctx context.Context, system, user string, maxTokens int, cfg inference.SamplerConfig) (string, error) {
	return "mock response", nil
}

func (m *mockBackend) Name() string {
	if m.name != "" {
		return m.name
	}
	return "mock"
}

func (m *mockBackend) IsReady() bool { return true }

func (m *mockBackend) Version() (string, error) { return "mock 1.0", nil }

func (m *mockBackend) Close() error {
	m.closed = true
	return m.closeErr
}

var _ Backend = (*mockBackend)(nil)
