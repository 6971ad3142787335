//go:build !yzma

package llama

import "fmt"

// Open always fails in builds without the native binding. Build with
// -tags yzma to enable it.
func Open(libDir string) (Engine, error) {
	return nil, fmt.Errorf("%w: built without -tags yzma", ErrUnavailable)
}
