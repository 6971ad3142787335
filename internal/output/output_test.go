//go:build !windows

package output_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LiboWorks/bitrag/internal/output"
)

func TestRedirectStdoutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "native.log")
	if err := os.WriteFile(path, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := output.RedirectStdoutToFile(path)
	if err != nil {
		t.Fatalf("RedirectStdoutToFile() error = %v", err)
	}
	fmt.Println("native noise")
	if r.Stdout() == nil || r.Stdout().Fd() == os.Stdout.Fd() {
		t.Errorf("Stdout() should be a separate descriptor")
	}
	if err := r.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if err := r.Restore(); err != nil {
		t.Fatalf("second Restore() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(data) != "native noise\n" {
		t.Errorf("file content = %q, want %q", string(data), "native noise\n")
	}
}

func TestRedirectStdoutKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Create(filepath.Join(dir, "orig"))
	if err != nil {
		t.Fatal(err)
	}
	defer orig.Close()
	sink, err := os.Create(filepath.Join(dir, "sink"))
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	// Point fd 1 at orig first so the test never writes to the real stdout.
	outer, err := output.RedirectStdout(orig)
	if err != nil {
		t.Fatalf("RedirectStdout() error = %v", err)
	}
	defer outer.Restore()

	inner, err := output.RedirectStdout(sink)
	if err != nil {
		t.Fatalf("RedirectStdout() error = %v", err)
	}
	fmt.Print("to sink")
	fmt.Fprint(inner.Stdout(), "to orig")
	if err := inner.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	fmt.Print(" again")

	got, _ := os.ReadFile(sink.Name())
	if string(got) != "to sink" {
		t.Errorf("sink = %q, want %q", got, "to sink")
	}
	got, _ = os.ReadFile(orig.Name())
	if !strings.Contains(string(got), "to orig again") {
		t.Errorf("orig = %q, want it to contain %q", got, "to orig again")
	}
}
