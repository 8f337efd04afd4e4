package instance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmgilman/kryzon/internal/challenge"
	"github.com/jmgilman/kryzon/internal/container"
	"github.com/jmgilman/kryzon/internal/ports"
	"github.com/jmgilman/kryzon/internal/slogger"
	"github.com/jmgilman/kryzon/internal/store"
)

// containerNamePrefix is the prefix for all managed containers.
const containerNamePrefix = "kryzon"

// Manager defaults.
const (
	DefaultMaxPerUser     = 3
	DefaultTTL            = 2 * time.Hour
	DefaultMaxExtendHours = 6
	DefaultDomain         = "ctf.local"
	DefaultStartTimeout   = 5 * time.Minute
)

// placeAttempts bounds retries when another process already holds the
// allocated port.
const placeAttempts = 3

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// instanceStore is the internal interface for instance persistence.
type instanceStore interface {
	Create(ctx context.Context, rec *store.Record) error
	Get(ctx context.Context, id string) (*store.Record, error)
	ListByOwner(ctx context.Context, ownerID string, statuses ...store.Status) ([]store.Record, error)
	List(ctx context.Context, filter store.ListFilter) ([]store.Record, error)
	UpdateStatus(ctx context.Context, id string, upd store.StatusUpdate) (*store.Record, error)
	ExtendTTL(ctx context.Context, id string, seconds int) (int, error)
}

// containerRuntime is the internal interface for container operations.
type containerRuntime interface {
	StartInstance(ctx context.Context, spec *container.StartSpec) (string, error)
	StopContainer(ctx context.Context, id string) ([]int, error)
	GetHealth(ctx context.Context, id string) (*container.Health, error)
	Logs(ctx context.Context, id string, tail int) (string, error)
	Stats(ctx context.Context, id string) (*container.Stats, error)
}

// portAllocator is the internal interface for host port reservation.
type portAllocator interface {
	Allocate(ctx context.Context) (int, error)
	Release(port int)
}

// challengeSource is the internal interface for challenge lookups.
type challengeSource interface {
	Lookup(ctx context.Context, slug string) (*challenge.Challenge, error)
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	MaxPerUser     int              // Concurrently active instances per owner
	DefaultTTL     time.Duration    // TTL assigned at creation
	MaxExtendHours int              // Upper bound for a single extension
	Domain         string           // Domain used to build host URLs
	StartTimeout   time.Duration    // Bound on a background container start
	Now            func() time.Time // Clock (defaults to time.Now)
}

func (c *ManagerConfig) applyDefaults() {
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = DefaultMaxPerUser
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.MaxExtendHours <= 0 {
		c.MaxExtendHours = DefaultMaxExtendHours
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Manager orchestrates instance lifecycle operations.
//
// While an instance is starting its host port belongs to the background start
// task, which releases it if the start fails or the instance was stopped in
// the meantime.
type Manager struct {
	store      instanceStore
	runtime    containerRuntime
	ports      portAllocator
	challenges challengeSource
	cfg        ManagerConfig

	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]int // Instance ID -> host port held by a start task
}

// NewManager creates a new instance manager.
func NewManager(st instanceStore, rt containerRuntime, pa portAllocator, cs challengeSource, cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	return &Manager{
		store:      st,
		runtime:    rt,
		ports:      pa,
		challenges: cs,
		cfg:        cfg,
		pending:    make(map[string]int),
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() ManagerConfig {
	return m.cfg
}

// Create records a new starting instance of the challenge for ownerID and
// launches its container in the background. Launch failures are only
// visible through later status queries.
func (m *Manager) Create(ctx context.Context, ownerID, slug string) (*Instance, error) {
	// Enforce the per-user quota
	active, err := m.store.ListByOwner(ctx, ownerID, store.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("count active instances: %w", err)
	}
	if len(active) >= m.cfg.MaxPerUser {
		return nil, &QuotaError{OwnerID: ownerID, Active: len(active), Max: m.cfg.MaxPerUser}
	}

	// Resolve the challenge
	ch, err := m.challenges.Lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("look up challenge: %w", err)
	}

	// Reserve a port and commit the record before anything exists in the runtime
	rec, err := m.place(ctx, ownerID, ch)
	if err != nil {
		return nil, err
	}

	slogger.L(ctx).Info("instance created",
		"instance", rec.ID, "owner", ownerID, "challenge", ch.Slug, "port", rec.HostPort)

	// Launch the container
	m.track(rec.ID, rec.HostPort)
	m.wg.Add(1)
	go m.start(context.WithoutCancel(ctx), *rec, *ch)

	return fromRecord(rec, m.cfg.Now()), nil
}

// place allocates a port and inserts the starting record.
func (m *Manager) place(ctx context.Context, ownerID string, ch *challenge.Challenge) (*store.Record, error) {
	for attempt := 1; ; attempt++ {
		port, err := m.ports.Allocate(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrNoPortsAvailable) {
				return nil, ErrNoCapacity
			}
			return nil, fmt.Errorf("allocate port: %w", err)
		}

		rec := m.newRecord(ownerID, ch, port)
		err = m.store.Create(ctx, rec)
		if err == nil {
			return rec, nil
		}

		// The port stays reserved here since another active record holds it.
		if errors.Is(err, store.ErrPortConflict) && attempt < placeAttempts {
			slogger.L(ctx).Debug("host port taken, retrying", "port", port, "error", err)
			continue
		}

		m.ports.Release(port)
		return nil, fmt.Errorf("create instance record: %w", err)
	}
}

func (m *Manager) newRecord(ownerID string, ch *challenge.Challenge, port int) *store.Record {
	id := uuid.NewString()
	now := m.cfg.Now()
	return &store.Record{
		ID:            id,
		ContainerName: containerName(ch.Slug, ownerID, id, now),
		OwnerID:       ownerID,
		ChallengeSlug: ch.Slug,
		HostPort:      port,
		HostURL:       fmt.Sprintf("http://vm-%s.%s", id[:8], m.cfg.Domain),
		TTLSeconds:    int(m.cfg.DefaultTTL / time.Second),
		Status:        store.StatusStarting,
		StartedAt:     now,
	}
}

// start runs the container launch for a freshly created record.
func (m *Manager) start(ctx context.Context, rec store.Record, ch challenge.Challenge) {
	defer m.wg.Done()
	defer m.untrack(rec.ID)

	log := slogger.L(ctx).With("instance", rec.ID, "challenge", ch.Slug)

	startCtx, cancel := context.WithTimeout(ctx, m.cfg.StartTimeout)
	containerID, err := m.runtime.StartInstance(startCtx, &container.StartSpec{
		Name:       rec.ContainerName,
		Challenge:  ch,
		HostPort:   rec.HostPort,
		InstanceID: rec.ID,
		OwnerID:    rec.OwnerID,
	})
	cancel()

	if err != nil {
		log.Error("start instance container", "error", err)
		now := m.cfg.Now()
		_, updErr := m.store.UpdateStatus(ctx, rec.ID, store.StatusUpdate{
			To:           store.StatusFailed,
			From:         []store.Status{store.StatusStarting},
			ErrorMessage: err.Error(),
			StoppedAt:    &now,
		})
		if updErr != nil && !errors.Is(updErr, store.ErrStatusConflict) {
			log.Error("record start failure", "error", updErr)
		}
		m.ports.Release(rec.HostPort)
		return
	}

	_, err = m.store.UpdateStatus(ctx, rec.ID, store.StatusUpdate{
		To:          store.StatusRunning,
		From:        []store.Status{store.StatusStarting},
		ContainerID: containerID,
	})
	if err == nil {
		log.Info("instance running", "container", containerID)
		return
	}

	// The instance was stopped while starting, or the store is unreachable.
	// Either way nothing will track this container.
	log.Warn("discarding started container", "container", containerID, "error", err)
	if _, stopErr := m.runtime.StopContainer(ctx, containerID); stopErr != nil && !errors.Is(stopErr, container.ErrNotFound) {
		log.Error("stop discarded container", "container", containerID, "error", stopErr)
	}
	m.ports.Release(rec.HostPort)
}

// Stop stops an instance on behalf of requesterID. When requireOwnership is
// set, instances owned by someone else are reported as ErrNotFound. Stopping
// a stopped or failed instance also returns ErrNotFound.
func (m *Manager) Stop(ctx context.Context, id, requesterID string, requireOwnership bool) error {
	rec, err := m.load(ctx, id, requesterID, requireOwnership)
	if err != nil {
		return err
	}
	return m.stop(ctx, rec)
}

// ForceStop stops any active instance regardless of owner.
func (m *Manager) ForceStop(ctx context.Context, id string) error {
	return m.Stop(ctx, id, "", false)
}

// stop moves rec to a terminal state. A failed container stop marks the
// instance failed and is returned to the caller.
func (m *Manager) stop(ctx context.Context, rec *store.Record) error {
	log := slogger.L(ctx).With("instance", rec.ID)

	for {
		if rec.Status.Terminal() {
			return ErrNotFound
		}

		var stopErr error
		if rec.ContainerID != "" {
			released, err := m.runtime.StopContainer(ctx, rec.ContainerID)
			switch {
			case err == nil:
				for _, p := range released {
					m.ports.Release(p)
				}
			case errors.Is(err, container.ErrNotFound):
				log.Debug("container already removed", "container", rec.ContainerID)
			default:
				stopErr = err
			}
		}

		now := m.cfg.Now()
		upd := store.StatusUpdate{
			To:        store.StatusStopped,
			From:      []store.Status{rec.Status},
			StoppedAt: &now,
		}
		if stopErr != nil {
			upd.To = store.StatusFailed
			upd.ErrorMessage = fmt.Sprintf("stop container: %v", stopErr)
		}

		_, err := m.store.UpdateStatus(ctx, rec.ID, upd)
		if errors.Is(err, store.ErrStatusConflict) {
			// The start task moved the record first; stop whatever it left.
			rec, err = m.load(ctx, rec.ID, "", false)
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("update instance status: %w", err)
		}

		if stopErr != nil {
			log.Error("instance stop failed", "error", stopErr)
			return fmt.Errorf("stop container: %w", stopErr)
		}

		// A starting instance's port is released by its start task.
		if rec.Status == store.StatusRunning {
			m.ports.Release(rec.HostPort)
		}
		log.Info("instance stopped", "previous", rec.Status)
		return nil
	}
}

// Extend adds hours to a running instance's TTL.
func (m *Manager) Extend(ctx context.Context, id, ownerID string, hours int) (*ExtendResult, error) {
	if hours < 1 || hours > m.cfg.MaxExtendHours {
		return nil, fmt.Errorf("%w: hours must be between 1 and %d", ErrInvalidExtension, m.cfg.MaxExtendHours)
	}

	rec, err := m.load(ctx, id, ownerID, true)
	if err != nil {
		return nil, err
	}
	if rec.Status != store.StatusRunning {
		return nil, &NotRunningError{InstanceID: id, Status: rec.Status}
	}

	ttl, err := m.store.ExtendTTL(ctx, id, hours*3600)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, store.ErrStatusConflict):
			return nil, fmt.Errorf("extend instance %s: %w", id, ErrNotRunning)
		default:
			return nil, fmt.Errorf("extend instance ttl: %w", err)
		}
	}

	rec.TTLSeconds = ttl
	slogger.L(ctx).Info("instance ttl extended", "instance", id, "hours", hours, "ttl", ttl)

	return &ExtendResult{
		InstanceID:    id,
		TTLSeconds:    ttl,
		TimeRemaining: rec.TimeRemaining(m.cfg.Now()),
	}, nil
}

// Status returns ownerID's instance with its time remaining and, for running
// instances, a best-effort health probe.
func (m *Manager) Status(ctx context.Context, id, ownerID string) (*Instance, error) {
	rec, err := m.load(ctx, id, ownerID, true)
	if err != nil {
		return nil, err
	}
	return m.describe(ctx, rec), nil
}

// Get returns any instance by ID, like Status without the ownership check.
func (m *Manager) Get(ctx context.Context, id string) (*Instance, error) {
	rec, err := m.load(ctx, id, "", false)
	if err != nil {
		return nil, err
	}
	return m.describe(ctx, rec), nil
}

func (m *Manager) describe(ctx context.Context, rec *store.Record) *Instance {
	inst := fromRecord(rec, m.cfg.Now())
	if rec.Status != store.StatusRunning || rec.ContainerID == "" {
		return inst
	}

	health, err := m.runtime.GetHealth(ctx, rec.ContainerID)
	if err != nil {
		slogger.L(ctx).Warn("health probe failed", "instance", rec.ID, "error", err)
		return inst
	}
	inst.Health = health
	return inst
}

// ListActive returns ownerID's starting and running instances, oldest first.
func (m *Manager) ListActive(ctx context.Context, ownerID string) ([]Instance, error) {
	records, err := m.store.ListByOwner(ctx, ownerID, store.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return m.toInstances(records), nil
}

// List returns all instances matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]Instance, error) {
	records, err := m.store.List(ctx, store.ListFilter{
		Status:        filter.Status,
		OwnerContains: filter.OwnerContains,
		Limit:         filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return m.toInstances(records), nil
}

// Logs returns the tail of an instance's container output.
func (m *Manager) Logs(ctx context.Context, id, requesterID string, requireOwnership bool, tail int) (string, error) {
	rec, err := m.load(ctx, id, requesterID, requireOwnership)
	if err != nil {
		return "", err
	}
	if rec.ContainerID == "" || rec.Status.Terminal() {
		return "", &NotRunningError{InstanceID: id, Status: rec.Status}
	}

	out, err := m.runtime.Logs(ctx, rec.ContainerID, tail)
	if err != nil {
		return "", fmt.Errorf("get container logs: %w", err)
	}
	return out, nil
}

// Stats samples a running instance's resource usage.
func (m *Manager) Stats(ctx context.Context, id string) (*container.Stats, error) {
	rec, err := m.load(ctx, id, "", false)
	if err != nil {
		return nil, err
	}
	if rec.Status != store.StatusRunning || rec.ContainerID == "" {
		return nil, &NotRunningError{InstanceID: id, Status: rec.Status}
	}

	stats, err := m.runtime.Stats(ctx, rec.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("get container stats: %w", err)
	}
	return stats, nil
}

// Wait blocks until every background start has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// IsPending reports whether a background start for id is in flight.
func (m *Manager) IsPending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[id]
	return ok
}

// PendingPorts returns the ports held by in-flight starts, sorted.
func (m *Manager) PendingPorts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]int, 0, len(m.pending))
	for _, p := range m.pending {
		result = append(result, p)
	}
	sort.Ints(result)
	return result
}

func (m *Manager) track(id string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[id] = port
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}

// load fetches a record, hiding instances the requester does not own.
func (m *Manager) load(ctx context.Context, id, requesterID string, requireOwnership bool) (*store.Record, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if requireOwnership && rec.OwnerID != requesterID {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *Manager) toInstances(records []store.Record) []Instance {
	now := m.cfg.Now()
	result := make([]Instance, 0, len(records))
	for i := range records {
		result = append(result, *fromRecord(&records[i], now))
	}
	return result
}

// containerName returns a name unique to the owner, challenge and creation time.
func containerName(slug, ownerID, id string, at time.Time) string {
	owner := strings.Trim(unsafeNameChars.ReplaceAllString(ownerID, "-"), "-.")
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("%s_%s_%s_%d_%s", containerNamePrefix, slug, owner, at.UnixMilli(), id[:8])
}
