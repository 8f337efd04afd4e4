// Package container provides the container engine primitives used to run
// challenge instances. It carries no lifecycle policy of its own.
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmgilman/kryzon/internal/challenge"
)

// Sentinel errors for container operations.
var (
	ErrNotFound      = errors.New("container not found")
	ErrInvalidSpec   = errors.New("invalid container spec")
	ErrNetworkConfig = errors.New("invalid network configuration")
)

// RuntimeError describes a failed engine operation against one container.
type RuntimeError struct {
	Op        string // Engine operation, e.g. "create" or "stop"
	Container string // Container name or ID
	Err       error
}

func (e *RuntimeError) Error() string {
	if e.Container == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Container, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// State is the engine-reported container state.
type State string

// State constants mirror the engine's container states.
const (
	StateCreated    State = "created"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateRestarting State = "restarting"
	StateRemoving   State = "removing"
	StateExited     State = "exited"
	StateDead       State = "dead"
	StateUnknown    State = "unknown"
)

// ParseState converts an engine state string to a State.
func ParseState(s string) State {
	switch State(s) {
	case StateCreated, StateRunning, StatePaused, StateRestarting, StateRemoving, StateExited, StateDead:
		return State(s)
	default:
		return StateUnknown
	}
}

// Finished reports whether the container has exited and will not run again.
func (s State) Finished() bool {
	return s == StateExited || s == StateDead
}

// Container is a managed container as reported by the engine.
type Container struct {
	ID        string
	Names     []string // Without the engine's leading slash
	Ports     []int    // Published host ports
	Labels    Labels
	State     State
	Status    string // Human-readable engine status, e.g. "Up 3 minutes"
	CreatedAt time.Time
}

// HasName reports whether name is one of the container's names.
func (c *Container) HasName(name string) bool {
	for _, n := range c.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Health is the result of a health probe.
type Health struct {
	Status    State  // Engine container state
	Health    string // healthy, unhealthy, starting or none
	Running   bool
	StartedAt time.Time
}

// Stats is a one-shot resource usage sample.
type Stats struct {
	CPUPercent    float64
	MemoryUsage   uint64
	MemoryLimit   uint64
	MemoryPercent float64
	NetworkRx     uint64
	NetworkTx     uint64
}

// StartSpec describes a challenge container to launch.
type StartSpec struct {
	Name       string // Unique container name (required)
	Challenge  challenge.Challenge
	HostPort   int // Host port bound to the challenge port (required)
	InstanceID string
	OwnerID    string
}

func (s *StartSpec) validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	case s.Challenge.Image == "":
		return fmt.Errorf("%w: image is required", ErrInvalidSpec)
	case s.Challenge.Port <= 0:
		return fmt.Errorf("%w: challenge port is required", ErrInvalidSpec)
	case s.HostPort <= 0:
		return fmt.Errorf("%w: host port is required", ErrInvalidSpec)
	}
	return nil
}

// Runtime provides the container operations needed to run challenge instances.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/runtime.go . Runtime
type Runtime interface {
	// EnsureNetwork creates the isolated bridge network if it does not exist.
	EnsureNetwork(ctx context.Context) error

	// PullImageIfAbsent pulls ref when it is not present locally.
	PullImageIfAbsent(ctx context.Context, ref string) error

	// StartInstance creates and starts a labeled challenge container and
	// returns its ID. A partially created container is force-removed on failure.
	StartInstance(ctx context.Context, spec *StartSpec) (string, error)

	// StopContainer gracefully stops and removes a container, returning the
	// host ports it had bound. Returns ErrNotFound if it does not exist.
	StopContainer(ctx context.Context, id string) ([]int, error)

	// RemoveContainer force-removes a container. Missing containers are ignored.
	RemoveContainer(ctx context.Context, id string) error

	// GetHealth inspects a container's state and health probe.
	// Returns ErrNotFound if it does not exist.
	GetHealth(ctx context.Context, id string) (*Health, error)

	// ListManaged returns every container bearing the management label.
	ListManaged(ctx context.Context) ([]Container, error)

	// BoundPorts returns the host ports published by all running containers,
	// including ones this process does not manage.
	BoundPorts(ctx context.Context) ([]int, error)

	// Logs returns the last tail lines of combined container output.
	Logs(ctx context.Context, id string, tail int) (string, error)

	// Stats returns a single resource usage sample.
	Stats(ctx context.Context, id string) (*Stats, error)
}
