//go:build !yzma

package llama_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/LiboWorks/bitrag/internal/llama"
)

func TestOpenWithoutBinding(t *testing.T) {
	eng, err := llama.Open("")
	if err == nil {
		t.Fatal("Open() should fail without the native binding")
	}
	if !errors.Is(err, llama.ErrUnavailable) {
		t.Errorf("Open() error = %v, want ErrUnavailable", err)
	}
	if eng != nil {
		t.Errorf("Open() engine = %v, want nil", eng)
	}
}

func TestFindLibraryDirEnv(t *testing.T) {
	t.Setenv(llama.LibraryEnv, "/opt/llama/lib")
	if got := llama.FindLibraryDir(); got != "/opt/llama/lib" {
		t.Errorf("FindLibraryDir() = %q, want %q", got, "/opt/llama/lib")
	}
}

func TestFindLibraryDirCandidates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("candidate layout differs on windows")
	}
	t.Setenv(llama.LibraryEnv, "")
	t.Setenv("YZMA_LIB", "")

	dir := t.TempDir()
	libDir := filepath.Join(dir, "lib", "llama")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	name := "libllama.so"
	if runtime.GOOS == "darwin" {
		name = "libllama.dylib"
	}
	if err := os.WriteFile(filepath.Join(libDir, name), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got := llama.FindLibraryDir()
	want, _ := filepath.EvalSymlinks(libDir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("FindLibraryDir() = %q, want %q", got, libDir)
	}
}

func TestBatchLen(t *testing.T) {
	b := llama.Batch{Tokens: []llama.Token{1, 2, 3}}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
}
