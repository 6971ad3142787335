package worker

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// Pool manages a pool of worker clients for parallel processing
type Pool struct {
	clients []*Client
	next    atomic.Uint64
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(size int, log logging.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	clients := make([]*Client, size)
	for i := 0; i < size; i++ {
		client, err := NewClient(log)
		if err != nil {
			// Clean up any clients we've already created
			for j := 0; j < i; j++ {
				clients[j].Close()
			}
			return nil, err
		}
		clients[i] = client
	}

	return &Pool{clients: clients}, nil
}

// NewPoolFromClients wraps already connected clients.
func NewPoolFromClients(clients ...*Client) *Pool {
	return &Pool{clients: clients}
}

// Get returns the next client in the pool (round-robin)
func (p *Pool) Get() *Client {
	n := p.next.Add(1) - 1
	return p.clients[n%uint64(len(p.clients))]
}

// Do runs req on the next worker.
func (p *Pool) Do(ctx context.Context, req Request, onToken inference.TokenFunc) (string, error) {
	return p.Get().Do(ctx, req, onToken)
}

// Close shuts down all workers in the pool
func (p *Pool) Close() error {
	var errs []error
	for _, client := range p.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the number of workers in the pool
func (p *Pool) Size() int {
	return len(p.clients)
}

// Pids returns the process ids of spawned workers.
func (p *Pool) Pids() []int {
	pids := make([]int, 0, len(p.clients))
	for _, c := range p.clients {
		if pid := c.Pid(); pid != 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}
