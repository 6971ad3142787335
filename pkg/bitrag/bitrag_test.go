package bitrag_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"

	"github.com/LiboWorks/bitrag/pkg/bitrag"
)

// openAIServer answers every chat completion with reply.
func openAIServer(t *testing.T, reply string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, piece := range strings.SplitAfter(reply, " ") {
				b, _ := json.Marshal(openai.ChatCompletionStreamResponse{
					Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: piece}}},
				})
				fmt.Fprintf(w, "data: %s\n\n", b)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func newEngine(t *testing.T, reply string, opts ...bitrag.Option) *bitrag.Engine {
	t.Helper()
	opts = append([]bitrag.Option{bitrag.WithOpenAI("test-key", openAIServer(t, reply), "tiny")}, opts...)
	eng, err := bitrag.New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestEngineGenerate(t *testing.T) {
	eng := newEngine(t, "Paris")

	text, err := eng.Generate(context.Background(), "The capital of France is")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Paris" {
		t.Errorf("expected 'Paris', got %q", text)
	}

	info := eng.Info()
	if !info.Ready {
		t.Error("backend should be ready")
	}
	if !strings.Contains(info.Backend, "openai") {
		t.Errorf("expected an openai backend, got %s", info.Backend)
	}
}

func TestEngineGenerateStream(t *testing.T) {
	eng := newEngine(t, "one two three")

	var pieces []string
	text, err := eng.GenerateStream(context.Background(), "count", func(p string) error {
		pieces = append(pieces, p)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if text != "one two three" {
		t.Errorf("expected full text, got %q", text)
	}
	if len(pieces) == 0 || strings.Join(pieces, "") != text {
		t.Errorf("streamed pieces %q do not add up to %q", pieces, text)
	}
}

func TestEngineDocuments(t *testing.T) {
	eng := newEngine(t, "unused")
	ctx := context.Background()

	id, err := eng.AddDocument(ctx, "The office is at 12 Harbour Street in Lisbon.", map[string]any{"team": "ops"})
	if err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if _, err := eng.AddDocument(ctx, "Bananas are rich in potassium.", nil); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	results, err := eng.Search(ctx, "where is the office in Lisbon", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected the office document first, got %+v", results)
	}

	if err := eng.RemoveDocument(ctx, id); err != nil {
		t.Fatalf("RemoveDocument failed: %v", err)
	}
	if err := eng.RemoveDocument(ctx, id); !errors.Is(err, bitrag.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := eng.AddDocument(ctx, "   ", nil); !errors.Is(err, bitrag.ErrInvalidConfig) {
		t.Errorf("expected empty content to be rejected, got %v", err)
	}
}

func TestEngineCorpusAndAsk(t *testing.T) {
	eng := newEngine(t, "The office is in Lisbon.")
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "corpus.yaml")
	corpus := "id: office\ncontent: The office is at 12 Harbour Street in Lisbon.\n---\nid: lunch\ncontent: Lunch is served at noon.\n"
	if err := os.WriteFile(path, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := eng.AddCorpusFile(ctx, path)
	if err != nil {
		t.Fatalf("AddCorpusFile failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}

	ans, err := eng.Ask(ctx, "Where is the office?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if ans.Text != "The office is in Lisbon." {
		t.Errorf("unexpected answer %q", ans.Text)
	}
	if ans.Question != "Where is the office?" {
		t.Errorf("unexpected question %q", ans.Question)
	}
	if ans.Category == "" || ans.Strategy == "" {
		t.Errorf("answer should carry its classification: %+v", ans)
	}
}

func TestEngineInvalidOptions(t *testing.T) {
	_, err := bitrag.New(bitrag.WithBackend("quantum"))
	if !errors.Is(err, bitrag.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if stage := bitrag.ErrorStage(err); stage != "config" {
		t.Errorf("expected stage 'config', got %s", stage)
	}

	_, err = bitrag.New(bitrag.WithPreset("wild"))
	if !errors.Is(err, bitrag.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for an unknown preset, got %v", err)
	}
}

func TestEngineMissingModel(t *testing.T) {
	_, err := bitrag.New(bitrag.WithModel("2b"), bitrag.WithModelsDir(t.TempDir()))
	if !errors.Is(err, bitrag.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if !strings.Contains(err.Error(), "bitrag model download") {
		t.Errorf("error should say how to download the model: %v", err)
	}
}
