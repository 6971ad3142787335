//go:build windows

package output

import "os"

// Descriptor redirection is not supported on Windows. Stdout stays shared
// and Restore is a no-op.
func (r *Redirect) redirect() error {
	r.stdout = os.Stdout
	return nil
}

func (r *Redirect) restore() error {
	return nil
}
