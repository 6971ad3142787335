//go:build !windows

package output

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func (r *Redirect) redirect() error {
	saved, err := unix.Dup(int(os.Stdout.Fd()))
	if err != nil {
		return fmt.Errorf("failed to save stdout: %w", err)
	}
	if err := unix.Dup2(int(r.target.Fd()), int(os.Stdout.Fd())); err != nil {
		unix.Close(saved)
		return fmt.Errorf("failed to redirect stdout: %w", err)
	}
	r.stdout = os.NewFile(uintptr(saved), "stdout")
	return nil
}

func (r *Redirect) restore() error {
	if err := unix.Dup2(int(r.stdout.Fd()), int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("failed to restore stdout: %w", err)
	}
	return r.stdout.Close()
}
