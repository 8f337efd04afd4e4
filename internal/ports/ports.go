// Package ports allocates host ports for challenge containers.
//
// The reservation set is a cache of ports believed to be bound. The container
// runtime is authoritative: every allocation is checked against the host ports
// published by running containers, including ones kryzon did not start, and
// Rebuild replaces the cache wholesale after a sweep.
package ports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Default host port range for challenge containers.
const (
	DefaultStart = 18000
	DefaultEnd   = 19000
)

// Sentinel errors for port allocation.
var (
	ErrNoPortsAvailable = errors.New("no ports available")
	ErrInvalidRange     = errors.New("invalid port range")
)

// liveLister reports the host ports bound by running containers.
type liveLister interface {
	BoundPorts(ctx context.Context) ([]int, error)
}

// Allocator hands out host ports from an inclusive range.
type Allocator struct {
	mu       sync.Mutex
	start    int
	end      int
	reserved map[int]struct{}
	live     liveLister
}

// NewAllocator creates an allocator over [start, end].
func NewAllocator(start, end int, live liveLister) (*Allocator, error) {
	if start <= 0 || end > 65535 || start > end {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end)
	}
	return &Allocator{
		start:    start,
		end:      end,
		reserved: make(map[int]struct{}),
		live:     live,
	}, nil
}

// Allocate reserves and returns the lowest free port in the range.
// The mutex is held across the runtime check and the reservation so two
// concurrent callers never receive the same port.
func (a *Allocator) Allocate(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bound, err := a.liveBound(ctx)
	if err != nil {
		return 0, err
	}

	for p := a.start; p <= a.end; p++ {
		if _, ok := a.reserved[p]; ok {
			continue
		}
		if bound[p] {
			// Bound by a container the cache did not know about, possibly
			// one kryzon does not manage.
			a.reserved[p] = struct{}{}
			continue
		}
		a.reserved[p] = struct{}{}
		return p, nil
	}

	return 0, ErrNoPortsAvailable
}

func (a *Allocator) liveBound(ctx context.Context) (map[int]bool, error) {
	if a.live == nil {
		return nil, nil
	}

	ports, err := a.live.BoundPorts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bound ports: %w", err)
	}

	bound := make(map[int]bool, len(ports))
	for _, p := range ports {
		bound[p] = true
	}
	return bound, nil
}

// Release returns a port to the pool. Releasing an unreserved port is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

// Rebuild replaces the reservation set. Ports outside the range are ignored.
func (a *Allocator) Rebuild(ports []int) {
	next := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		if p >= a.start && p <= a.end {
			next[p] = struct{}{}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved = next
}

// Reserved returns the reserved ports in ascending order.
func (a *Allocator) Reserved() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make([]int, 0, len(a.reserved))
	for p := range a.reserved {
		result = append(result, p)
	}
	sort.Ints(result)
	return result
}

// IsReserved reports whether port is currently reserved.
func (a *Allocator) IsReserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.reserved[port]
	return ok
}

// Capacity returns the size of the port range.
func (a *Allocator) Capacity() int {
	return a.end - a.start + 1
}
