package llama

import (
	"os"
	"path/filepath"
	"runtime"
)

// LibraryEnv overrides the directory holding the llama.cpp shared libraries.
const LibraryEnv = "BITRAG_LLAMA_LIB"

// libraryName returns the platform file name of the core llama library.
func libraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "llama.dll"
	case "darwin":
		return "libllama.dylib"
	default:
		return "libllama.so"
	}
}

// FindLibraryDir returns the first directory that contains the llama shared
// library: the env override, then a fixed candidate list. An empty string
// means nothing was found.
func FindLibraryDir() string {
	if dir := os.Getenv(LibraryEnv); dir != "" {
		return dir
	}
	if dir := os.Getenv("YZMA_LIB"); dir != "" {
		return dir
	}
	for _, dir := range libraryCandidates() {
		if _, err := os.Stat(filepath.Join(dir, libraryName())); err == nil {
			if abs, err := filepath.Abs(dir); err == nil {
				return abs
			}
			return dir
		}
	}
	return ""
}

func libraryCandidates() []string {
	exeDir := "."
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	home, _ := os.UserHomeDir()
	candidates := []string{
		"./lib/llama",
		filepath.Join(exeDir, "lib", "llama"),
		filepath.Join(exeDir, "lib"),
	}
	if home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".local", "lib", "bitrag"),
			filepath.Join(home, ".local", "share", "bitnet.cpp", "build", "bin"),
		)
	}
	return append(candidates, "/usr/local/lib", "/usr/lib")
}
