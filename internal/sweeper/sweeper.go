// Package sweeper reconciles instance records against the container runtime.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmgilman/kryzon/internal/container"
	"github.com/jmgilman/kryzon/internal/instance"
	"github.com/jmgilman/kryzon/internal/slogger"
	"github.com/jmgilman/kryzon/internal/store"
)

// DefaultInterval is the time between scheduled sweeps.
const DefaultInterval = 5 * time.Minute

// Step names one phase of a sweep.
type Step string

// Sweep steps in execution order.
const (
	StepExpire  Step = "expire"
	StepStale   Step = "stale"
	StepOrphan  Step = "orphan"
	StepQuota   Step = "quota"
	StepForce   Step = "force"
	StepCleanup Step = "cleanup"
)

// instanceStore is the internal interface for reading instance records.
type instanceStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]store.Record, error)
	ListByStatus(ctx context.Context, statuses ...store.Status) ([]store.Record, error)
	UpdateStatus(ctx context.Context, id string, upd store.StatusUpdate) (*store.Record, error)
	Stats(ctx context.Context) ([]store.StatusStat, error)
}

// containerRuntime is the internal interface for runtime inspection and removal.
type containerRuntime interface {
	ListManaged(ctx context.Context) ([]container.Container, error)
	StopContainer(ctx context.Context, id string) ([]int, error)
	RemoveContainer(ctx context.Context, id string) error
}

// portCache is the internal interface for the port reservation cache.
type portCache interface {
	Release(port int)
	Rebuild(ports []int)
	Reserved() []int
}

// lifecycle is the internal interface for stopping instances.
type lifecycle interface {
	ForceStop(ctx context.Context, id string) error
	IsPending(id string) bool
	PendingPorts() []int
}

// Config configures the Sweeper.
type Config struct {
	Interval     time.Duration    // Time between sweeps
	MaxPerUser   int              // Active instances allowed per owner
	StartTimeout time.Duration    // Age after which an untracked starting record is stale
	Now          func() time.Time // Clock (defaults to time.Now)
	OnSweep      func(*Report)    // Called after every sweep (optional)
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = instance.DefaultMaxPerUser
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = instance.DefaultStartTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Outcome is the result of one sweep action on one instance or container.
type Outcome struct {
	Step        Step
	InstanceID  string
	ContainerID string
	Err         error
}

// OK reports whether the action succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report collects the outcomes of a sweep.
type Report struct {
	StartedAt  time.Time
	Duration   time.Duration
	Outcomes   []Outcome
	StepErrors map[Step]error // Steps that could not run at all
	Reserved   int            // Reserved ports after the rebuild
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) fail(step Step, err error) {
	if r.StepErrors == nil {
		r.StepErrors = make(map[Step]error)
	}
	r.StepErrors[step] = err
}

// Count returns the succeeded and failed outcomes for step.
func (r *Report) Count(step Step) (succeeded, failed int) {
	for _, o := range r.Outcomes {
		if o.Step != step {
			continue
		}
		if o.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Failures returns the failed outcomes.
func (r *Report) Failures() []Outcome {
	var result []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			result = append(result, o)
		}
	}
	return result
}

// Empty reports whether the sweep took no action and hit no errors.
func (r *Report) Empty() bool {
	return len(r.Outcomes) == 0 && len(r.StepErrors) == 0
}

// CleanupStats summarises instance and container state for operators.
type CleanupStats struct {
	ByStatus          []store.StatusStat
	TotalInstances    int
	ManagedContainers int
	Timestamp         time.Time
}

// Sweeper periodically reconciles the store with the runtime.
type Sweeper struct {
	store   instanceStore
	runtime containerRuntime
	ports   portCache
	mgr     lifecycle
	cfg     Config
}

// New creates a sweeper.
func New(st instanceStore, rt containerRuntime, pc portCache, mgr lifecycle, cfg Config) *Sweeper {
	cfg.applyDefaults()
	return &Sweeper{
		store:   st,
		runtime: rt,
		ports:   pc,
		mgr:     mgr,
		cfg:     cfg,
	}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	log := slogger.L(ctx)
	log.Info("sweeper started", "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs every reconciliation step once. A failing step or action is
// recorded in the report and never stops the remaining work.
func (s *Sweeper) Sweep(ctx context.Context) *Report {
	report := &Report{StartedAt: s.cfg.Now()}

	s.expire(ctx, report)
	s.failStale(ctx, report)
	s.removeOrphans(ctx, report)
	s.enforceQuota(ctx, report)
	s.cleanup(ctx, report)

	s.finish(ctx, report)
	return report
}

// ForceCleanupAll stops every active instance and then removes finished
// containers and rebuilds the port cache.
func (s *Sweeper) ForceCleanupAll(ctx context.Context) *Report {
	report := &Report{StartedAt: s.cfg.Now()}

	active, err := s.store.ListByStatus(ctx, store.ActiveStatuses...)
	if err != nil {
		report.fail(StepForce, fmt.Errorf("list active instances: %w", err))
	}
	for i := range active {
		s.stopInstance(ctx, report, StepForce, &active[i])
	}

	s.cleanup(ctx, report)

	s.finish(ctx, report)
	return report
}

// RebuildPorts replaces the port cache with the ports bound by live
// containers plus those held by in-flight starts.
func (s *Sweeper) RebuildPorts(ctx context.Context) (int, error) {
	containers, err := s.runtime.ListManaged(ctx)
	if err != nil {
		return 0, fmt.Errorf("list managed containers: %w", err)
	}
	return s.rebuild(containers), nil
}

// Stats aggregates instance records and counts managed containers.
func (s *Sweeper) Stats(ctx context.Context) (*CleanupStats, error) {
	byStatus, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate instances: %w", err)
	}

	containers, err := s.runtime.ListManaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list managed containers: %w", err)
	}

	stats := &CleanupStats{
		ByStatus:          byStatus,
		ManagedContainers: len(containers),
		Timestamp:         s.cfg.Now(),
	}
	for _, st := range byStatus {
		stats.TotalInstances += st.Count
	}
	return stats, nil
}

func (s *Sweeper) finish(ctx context.Context, report *Report) {
	report.Duration = s.cfg.Now().Sub(report.StartedAt)

	log := slogger.L(ctx)
	for step, err := range report.StepErrors {
		log.Error("sweep step failed", "step", step, "error", err)
	}
	for _, o := range report.Failures() {
		log.Warn("sweep action failed",
			"step", o.Step, "instance", o.InstanceID, "container", o.ContainerID, "error", o.Err)
	}
	if !report.Empty() {
		log.Info("sweep finished",
			"actions", len(report.Outcomes), "failures", len(report.Failures()), "duration", report.Duration)
	}

	if s.cfg.OnSweep != nil {
		s.cfg.OnSweep(report)
	}
}

// expire stops running instances whose TTL has elapsed.
func (s *Sweeper) expire(ctx context.Context, report *Report) {
	expired, err := s.store.ListExpired(ctx, s.cfg.Now())
	if err != nil {
		report.fail(StepExpire, fmt.Errorf("list expired instances: %w", err))
		return
	}
	for i := range expired {
		s.stopInstance(ctx, report, StepExpire, &expired[i])
	}
}

// failStale fails starting records that no start task in this process owns
// and that are older than the start timeout.
func (s *Sweeper) failStale(ctx context.Context, report *Report) {
	starting, err := s.store.ListByStatus(ctx, store.StatusStarting)
	if err != nil {
		report.fail(StepStale, fmt.Errorf("list starting instances: %w", err))
		return
	}

	now := s.cfg.Now()
	for i := range starting {
		rec := &starting[i]
		if now.Sub(rec.StartedAt) < s.cfg.StartTimeout || s.mgr.IsPending(rec.ID) {
			continue
		}

		_, err := s.store.UpdateStatus(ctx, rec.ID, store.StatusUpdate{
			To:           store.StatusFailed,
			From:         []store.Status{store.StatusStarting},
			ErrorMessage: fmt.Sprintf("start did not complete within %s", s.cfg.StartTimeout),
			StoppedAt:    &now,
		})
		if errors.Is(err, store.ErrStatusConflict) {
			continue
		}
		if err == nil {
			s.ports.Release(rec.HostPort)
		}
		report.add(Outcome{Step: StepStale, InstanceID: rec.ID, Err: err})
	}
}

// removeOrphans removes managed containers no active record refers to.
// The runtime is listed before the store: a record is always committed
// before its container is created, so any listed container's record is
// visible to the later read.
func (s *Sweeper) removeOrphans(ctx context.Context, report *Report) {
	containers, err := s.runtime.ListManaged(ctx)
	if err != nil {
		report.fail(StepOrphan, fmt.Errorf("list managed containers: %w", err))
		return
	}

	active, err := s.store.ListByStatus(ctx, store.ActiveStatuses...)
	if err != nil {
		report.fail(StepOrphan, fmt.Errorf("list active instances: %w", err))
		return
	}

	referenced := make(map[string]bool, 2*len(active))
	heldPorts := make(map[int]bool, len(active))
	for i := range active {
		referenced[active[i].ContainerName] = true
		if active[i].ContainerID != "" {
			referenced[active[i].ContainerID] = true
		}
		heldPorts[active[i].HostPort] = true
	}

	for i := range containers {
		c := &containers[i]
		if isReferenced(c, referenced) {
			continue
		}

		bound := append([]int(nil), c.Ports...)
		var err error
		if c.State.Finished() {
			err = s.runtime.RemoveContainer(ctx, c.ID)
		} else {
			var stopped []int
			stopped, err = s.runtime.StopContainer(ctx, c.ID)
			bound = append(bound, stopped...)
			if errors.Is(err, container.ErrNotFound) {
				err = nil
			}
		}
		if err == nil {
			if c.Labels.HostPort > 0 {
				bound = append(bound, c.Labels.HostPort)
			}
			for _, p := range bound {
				if !heldPorts[p] {
					s.ports.Release(p)
				}
			}
		}
		report.add(Outcome{Step: StepOrphan, InstanceID: c.Labels.InstanceID, ContainerID: c.ID, Err: err})
	}
}

func isReferenced(c *container.Container, referenced map[string]bool) bool {
	if referenced[c.ID] {
		return true
	}
	for _, n := range c.Names {
		if referenced[n] {
			return true
		}
	}
	return false
}

// enforceQuota stops each owner's oldest active instances beyond the limit.
func (s *Sweeper) enforceQuota(ctx context.Context, report *Report) {
	active, err := s.store.ListByStatus(ctx, store.ActiveStatuses...)
	if err != nil {
		report.fail(StepQuota, fmt.Errorf("list active instances: %w", err))
		return
	}

	byOwner := make(map[string][]store.Record)
	var owners []string
	for _, rec := range active {
		if _, ok := byOwner[rec.OwnerID]; !ok {
			owners = append(owners, rec.OwnerID)
		}
		byOwner[rec.OwnerID] = append(byOwner[rec.OwnerID], rec)
	}

	for _, owner := range owners {
		records := byOwner[owner]
		excess := len(records) - s.cfg.MaxPerUser
		if excess <= 0 {
			continue
		}

		sort.SliceStable(records, func(i, j int) bool {
			return records[i].StartedAt.Before(records[j].StartedAt)
		})
		slogger.L(ctx).Info("owner over quota", "owner", owner, "active", len(records), "max", s.cfg.MaxPerUser)
		for i := range records[:excess] {
			s.stopInstance(ctx, report, StepQuota, &records[i])
		}
	}
}

// cleanup removes finished managed containers and rebuilds the port cache.
func (s *Sweeper) cleanup(ctx context.Context, report *Report) {
	containers, err := s.runtime.ListManaged(ctx)
	if err != nil {
		report.fail(StepCleanup, fmt.Errorf("list managed containers: %w", err))
		return
	}

	var live []container.Container
	for i := range containers {
		c := &containers[i]
		if !c.State.Finished() {
			live = append(live, *c)
			continue
		}
		err := s.runtime.RemoveContainer(ctx, c.ID)
		report.add(Outcome{Step: StepCleanup, InstanceID: c.Labels.InstanceID, ContainerID: c.ID, Err: err})
	}

	report.Reserved = s.rebuild(live)
}

func (s *Sweeper) rebuild(containers []container.Container) int {
	var bound []int
	for i := range containers {
		if containers[i].State.Finished() {
			continue
		}
		bound = append(bound, containers[i].Ports...)
	}
	bound = append(bound, s.mgr.PendingPorts()...)
	s.ports.Rebuild(bound)
	return len(s.ports.Reserved())
}

func (s *Sweeper) stopInstance(ctx context.Context, report *Report, step Step, rec *store.Record) {
	err := s.mgr.ForceStop(ctx, rec.ID)
	if errors.Is(err, instance.ErrNotFound) {
		// Stopped concurrently.
		return
	}
	report.add(Outcome{Step: step, InstanceID: rec.ID, ContainerID: rec.ContainerID, Err: err})
}
