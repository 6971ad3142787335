package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FindRepoRoot finds the repository root by looking for go.mod.
func FindRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find go.mod in any parent directory")
		}
		dir = parent
	}
}

// WriteFakeModel creates a placeholder model file and returns its path.
func WriteFakeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(path, []byte("GGUF fake weights"), 0644); err != nil {
		t.Fatalf("write fake model: %v", err)
	}
	return path
}

// WriteFakeCLI writes an executable POSIX shell script standing in for
// llama-cli and returns its path. The body runs after "#!/bin/sh".
func WriteFakeCLI(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake llama-cli scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "llama-cli")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake cli: %v", err)
	}
	return path
}

// EchoArgsCLI is a fake llama-cli body that prints the generated text and
// then each argument on its own line prefixed with "arg:".
func EchoArgsCLI(output string) string {
	return fmt.Sprintf(`if [ "$1" = "--version" ]; then echo "version: 4242 (fake)"; exit 0; fi
printf '%%s' %q
for a in "$@"; do printf '\narg:%%s' "$a"; done
`, output)
}
