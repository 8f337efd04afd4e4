// Package instance provides high-level challenge instance lifecycle management.
package instance

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmgilman/kryzon/internal/container"
	"github.com/jmgilman/kryzon/internal/store"
)

// Sentinel errors for instance operations.
var (
	ErrNotFound          = errors.New("instance not found")
	ErrQuotaExceeded     = errors.New("instance quota exceeded")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNoCapacity        = errors.New("no capacity available")
	ErrNotRunning        = errors.New("instance is not running")
	ErrInvalidExtension  = errors.New("invalid ttl extension")
)

// QuotaError describes a rejected create for an owner at their limit.
type QuotaError struct {
	OwnerID string
	Active  int
	Max     int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("maximum %d instances allowed per user (%s has %d active)", e.Max, e.OwnerID, e.Active)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// NotRunningError describes an operation that needs a running instance.
type NotRunningError struct {
	InstanceID string
	Status     Status
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("instance %s is not running (status: %s)", e.InstanceID, e.Status)
}

func (e *NotRunningError) Unwrap() error {
	return ErrNotRunning
}

// Status is the instance lifecycle state.
type Status = store.Status

// Instance status constants.
const (
	StatusStarting = store.StatusStarting
	StatusRunning  = store.StatusRunning
	StatusStopped  = store.StatusStopped
	StatusFailed   = store.StatusFailed
)

// Instance is a challenge instance as seen by callers.
type Instance struct {
	ID            string
	ContainerName string
	OwnerID       string
	ChallengeSlug string
	HostPort      int
	ContainerID   string // Empty until the container is confirmed started
	HostURL       string
	TTLSeconds    int
	Status        Status
	StartedAt     time.Time
	StoppedAt     *time.Time
	ErrorMessage  string
	TimeRemaining time.Duration
	Health        *container.Health // Best-effort probe, nil when unavailable
}

// ListFilter filters administrative instance listings.
type ListFilter struct {
	Status        Status // Filter by status (empty = all)
	OwnerContains string // Filter by owner ID substring (empty = all)
	Limit         int    // Maximum results (0 = unlimited)
}

// ExtendResult reports a successful TTL extension.
type ExtendResult struct {
	InstanceID    string
	TTLSeconds    int
	TimeRemaining time.Duration
}

func fromRecord(rec *store.Record, now time.Time) *Instance {
	return &Instance{
		ID:            rec.ID,
		ContainerName: rec.ContainerName,
		OwnerID:       rec.OwnerID,
		ChallengeSlug: rec.ChallengeSlug,
		HostPort:      rec.HostPort,
		ContainerID:   rec.ContainerID,
		HostURL:       rec.HostURL,
		TTLSeconds:    rec.TTLSeconds,
		Status:        rec.Status,
		StartedAt:     rec.StartedAt,
		StoppedAt:     rec.StoppedAt,
		ErrorMessage:  rec.ErrorMessage,
		TimeRemaining: rec.TimeRemaining(now),
	}
}
