// Package store provides persistent storage for challenge instance records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for store operations.
var (
	ErrNotFound       = errors.New("instance not found")
	ErrAlreadyExists  = errors.New("instance already exists")
	ErrPortConflict   = errors.New("host port held by an active instance")
	ErrStatusConflict = errors.New("instance status changed concurrently")
	ErrInvalidStatus  = errors.New("invalid status transition")
	ErrLockTimeout    = errors.New("failed to acquire store lock")
)

// Status is the persisted instance lifecycle state.
type Status string

// The four lifecycle states. Stopped and Failed are terminal.
const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
)

// allStatuses lists every status in lifecycle order.
var allStatuses = []Status{StatusStarting, StatusRunning, StatusStopped, StatusFailed}

// ActiveStatuses are the states that hold a container and a port.
var ActiveStatuses = []Status{StatusStarting, StatusRunning}

// ParseStatus converts a persisted string to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusStarting, StatusRunning, StatusStopped, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, s)
	}
}

// Active reports whether the status holds runtime resources.
func (s Status) Active() bool {
	switch s {
	case StatusStarting, StatusRunning:
		return true
	case StatusStopped, StatusFailed:
		return false
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusStopped, StatusFailed:
		return true
	case StatusStarting, StatusRunning:
		return false
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusStarting:
		return next == StatusRunning || next == StatusFailed || next == StatusStopped
	case StatusRunning:
		return next == StatusStopped || next == StatusFailed
	case StatusStopped, StatusFailed:
		return false
	default:
		return false
	}
}

// Record is a persisted challenge instance.
type Record struct {
	ID            string     `json:"id"`
	ContainerName string     `json:"container_name"`
	OwnerID       string     `json:"owner_id"`
	ChallengeSlug string     `json:"challenge_slug"`
	HostPort      int        `json:"host_port"`
	ContainerID   string     `json:"container_id,omitempty"` // Empty until the runtime confirms creation
	HostURL       string     `json:"host_url"`
	TTLSeconds    int        `json:"ttl_seconds"`
	Status        Status     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// TTL returns the record's time-to-live.
func (r *Record) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// ExpiresAt returns when the record's TTL runs out.
func (r *Record) ExpiresAt() time.Time {
	return r.StartedAt.Add(r.TTL())
}

// Expired reports whether a running record has outlived its TTL at now.
func (r *Record) Expired(now time.Time) bool {
	return r.Status == StatusRunning && now.After(r.ExpiresAt())
}

// TimeRemaining returns max(0, ttl - elapsed).
func (r *Record) TimeRemaining(now time.Time) time.Duration {
	remaining := r.ExpiresAt().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ListFilter filters administrative listings.
type ListFilter struct {
	Status        Status // Exact status (empty = all)
	OwnerContains string // Owner ID substring (empty = all)
	Limit         int    // Maximum results (0 = unlimited)
}

// StatusUpdate describes a conditional status transition.
type StatusUpdate struct {
	To           Status
	From         []Status   // Required current statuses (empty = any non-terminal)
	ContainerID  string     // Set when non-empty
	ErrorMessage string     // Set when non-empty
	StoppedAt    *time.Time // Set when non-nil
}

func (u *StatusUpdate) allows(current Status) bool {
	if !current.CanTransition(u.To) {
		return false
	}
	if len(u.From) == 0 {
		return true
	}
	for _, s := range u.From {
		if s == current {
			return true
		}
	}
	return false
}

func (u *StatusUpdate) apply(r *Record) {
	r.Status = u.To
	if u.ContainerID != "" {
		r.ContainerID = u.ContainerID
	}
	if u.ErrorMessage != "" {
		r.ErrorMessage = u.ErrorMessage
	}
	if u.StoppedAt != nil {
		t := *u.StoppedAt
		r.StoppedAt = &t
	}
}

// StatusStat aggregates records sharing a status.
type StatusStat struct {
	Status      Status
	Count       int
	AvgDuration time.Duration // Mean stopped_at - started_at over finished records
}

// Store persists instance records.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/store.go . Store
type Store interface {
	// Create inserts a new record.
	// Returns ErrAlreadyExists if the ID or container name is taken, or the
	// host port is held by another active record.
	Create(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID.
	// Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Record, error)

	// ListByOwner returns the owner's records in the given statuses (all if none).
	ListByOwner(ctx context.Context, ownerID string, statuses ...Status) ([]Record, error)

	// ListByStatus returns records in the given statuses, oldest first.
	ListByStatus(ctx context.Context, statuses ...Status) ([]Record, error)

	// ListExpired returns running records whose TTL has elapsed at now.
	ListExpired(ctx context.Context, now time.Time) ([]Record, error)

	// List returns records matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// UpdateStatus applies upd only if the current status satisfies it.
	// Returns ErrNotFound if missing and ErrStatusConflict if the
	// precondition fails.
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*Record, error)

	// ExtendTTL adds seconds to a running record's TTL and returns the new TTL.
	// Returns ErrStatusConflict if the record is not running.
	ExtendTTL(ctx context.Context, id string, seconds int) (int, error)

	// Stats aggregates records by status.
	Stats(ctx context.Context) ([]StatusStat, error)

	// Close releases store resources.
	Close() error
}

// containsStatus reports whether s is in statuses; an empty list matches all.
func containsStatus(statuses []Status, s Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if want == s {
			return true
		}
	}
	return false
}
