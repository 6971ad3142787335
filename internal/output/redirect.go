// Package output guards the process's standard output. Native inference
// code can print straight to file descriptor 1, which would corrupt the
// worker protocol, so workers move fd 1 aside and speak on a private
// duplicate of it.
package output

import (
	"fmt"
	"os"
	"sync"
)

// Redirect is an active redirection of fd 1.
type Redirect struct {
	mu       sync.Mutex
	stdout   *os.File // the original stdout, still writable
	target   *os.File
	ownsFile bool
	restored bool
}

// RedirectStdout sends everything written to fd 1 to target from now on,
// including writes through os.Stdout and from C code. Stdout returns a file
// that still reaches the original destination.
func RedirectStdout(target *os.File) (*Redirect, error) {
	r := &Redirect{target: target}
	if err := r.redirect(); err != nil {
		return nil, err
	}
	return r, nil
}

// RedirectStdoutToFile is RedirectStdout into the file at path, which is
// truncated first and closed on Restore.
func RedirectStdoutToFile(path string) (*Redirect, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s for redirect: %w", path, err)
	}
	r := &Redirect{target: f, ownsFile: true}
	if err := r.redirect(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Stdout returns the original standard output.
func (r *Redirect) Stdout() *os.File {
	return r.stdout
}

// Restore puts the original stdout back on fd 1. It is safe to call more
// than once.
func (r *Redirect) Restore() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.restored {
		return nil
	}
	r.restored = true
	err := r.restore()
	if r.ownsFile {
		r.target.Close()
	}
	return err
}
