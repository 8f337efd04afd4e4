package sweeper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/kryzon/internal/challenge"
	"github.com/jmgilman/kryzon/internal/container"
	"github.com/jmgilman/kryzon/internal/container/mocks"
	"github.com/jmgilman/kryzon/internal/instance"
	"github.com/jmgilman/kryzon/internal/ports"
	"github.com/jmgilman/kryzon/internal/store"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// engine is an in-memory container runtime.
type engine struct {
	mu         sync.Mutex
	containers map[string]container.Container
	failStop   map[string]bool
}

func newEngine(containers ...container.Container) *engine {
	e := &engine{
		containers: make(map[string]container.Container),
		failStop:   make(map[string]bool),
	}
	for _, c := range containers {
		e.containers[c.ID] = c
	}
	return e
}

func (e *engine) has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.containers[id]
	return ok
}

func (e *engine) mock() *mocks.RuntimeMock {
	return &mocks.RuntimeMock{
		ListManagedFunc: func(context.Context) ([]container.Container, error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			result := make([]container.Container, 0, len(e.containers))
			for _, c := range e.containers {
				result = append(result, c)
			}
			sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
			return result, nil
		},
		BoundPortsFunc: func(context.Context) ([]int, error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			var bound []int
			for _, c := range e.containers {
				bound = append(bound, c.Ports...)
			}
			return bound, nil
		},
		StopContainerFunc: func(_ context.Context, id string) ([]int, error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.failStop[id] {
				return nil, &container.RuntimeError{Op: "stop", Container: id, Err: errors.New("daemon timeout")}
			}
			c, ok := e.containers[id]
			if !ok {
				return nil, container.ErrNotFound
			}
			delete(e.containers, id)
			return c.Ports, nil
		},
		RemoveContainerFunc: func(_ context.Context, id string) error {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.containers, id)
			return nil
		},
	}
}

func managed(id, name string, port int, state container.State) container.Container {
	c := container.Container{
		ID:    id,
		Names: []string{name},
		State: state,
		Labels: container.Labels{
			Type:     container.TypeChallengeInstance,
			HostPort: port,
		},
	}
	if !state.Finished() {
		c.Ports = []int{port}
	}
	return c
}

type fixture struct {
	sweeper *Sweeper
	store   *store.FileStore
	engine  *engine
	ports   *ports.Allocator
	mgr     *instance.Manager
}

func newFixture(t *testing.T, e *engine, maxPerUser int) *fixture {
	t.Helper()

	rt := e.mock()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "instances.json"))
	alloc, err := ports.NewAllocator(18000, 18099, rt)
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	mgr := instance.NewManager(st, rt, alloc, challenge.NewStaticSource(), instance.ManagerConfig{
		MaxPerUser: maxPerUser,
		Now:        clock,
	})

	return &fixture{
		sweeper: New(st, rt, alloc, mgr, Config{MaxPerUser: maxPerUser, StartTimeout: 5 * time.Minute, Now: clock}),
		store:   st,
		engine:  e,
		ports:   alloc,
		mgr:     mgr,
	}
}

// seed stores a record whose container (if any) is named after its ID.
func (f *fixture) seed(t *testing.T, owner string, status store.Status, port int, age time.Duration) *store.Record {
	t.Helper()

	id := uuid.NewString()
	rec := &store.Record{
		ID:            id,
		ContainerName: "kryzon_web_" + owner + "_" + id,
		OwnerID:       owner,
		ChallengeSlug: "web",
		HostPort:      port,
		HostURL:       "http://vm-" + id[:8] + ".ctf.local",
		TTLSeconds:    3600,
		Status:        status,
		StartedAt:     testNow.Add(-age),
	}
	if status == store.StatusRunning {
		rec.ContainerID = "c-" + id
	}
	require.NoError(t, f.store.Create(context.Background(), rec))
	f.ports.Rebuild(append(f.ports.Reserved(), port))
	return rec
}

func (f *fixture) status(t *testing.T, id string) *store.Record {
	t.Helper()
	rec, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func TestSweeper_Expire(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f := newFixture(t, e, 3)

	expired := f.seed(t, "alice", store.StatusRunning, 18001, 3700*time.Second)
	fresh := f.seed(t, "alice", store.StatusRunning, 18002, 10*time.Minute)
	e.containers[expired.ContainerID] = managed(expired.ContainerID, expired.ContainerName, 18001, container.StateRunning)
	e.containers[fresh.ContainerID] = managed(fresh.ContainerID, fresh.ContainerName, 18002, container.StateRunning)

	report := f.sweeper.Sweep(ctx)

	ok, failed := report.Count(StepExpire)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)

	got := f.status(t, expired.ID)
	assert.Equal(t, store.StatusStopped, got.Status)
	require.NotNil(t, got.StoppedAt)
	assert.False(t, e.has(expired.ContainerID))
	assert.False(t, f.ports.IsReserved(18001))

	assert.Equal(t, store.StatusRunning, f.status(t, fresh.ID).Status)
	assert.True(t, f.ports.IsReserved(18002))
}

func TestSweeper_ToleratesPartialFailure(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f := newFixture(t, e, 3)

	stuck := f.seed(t, "alice", store.StatusRunning, 18001, 2*time.Hour)
	other := f.seed(t, "bob", store.StatusRunning, 18002, 3*time.Hour)
	e.containers[stuck.ContainerID] = managed(stuck.ContainerID, stuck.ContainerName, 18001, container.StateRunning)
	e.containers[other.ContainerID] = managed(other.ContainerID, other.ContainerName, 18002, container.StateRunning)
	e.failStop[stuck.ContainerID] = true

	report := f.sweeper.Sweep(ctx)

	ok, failed := report.Count(StepExpire)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	failures := report.Failures()
	require.NotEmpty(t, failures)
	assert.Equal(t, StepExpire, failures[0].Step)
	assert.Equal(t, stuck.ID, failures[0].InstanceID)

	got := f.status(t, stuck.ID)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "daemon timeout")
	assert.Equal(t, store.StatusStopped, f.status(t, other.ID).Status)
}

func TestSweeper_Orphans(t *testing.T) {
	ctx := context.Background()
	e := newEngine(managed("orphan", "kryzon_web_ghost_1", 18050, container.StateRunning))
	f := newFixture(t, e, 3)
	f.ports.Rebuild([]int{18050})

	tracked := f.seed(t, "alice", store.StatusRunning, 18001, time.Minute)
	e.containers[tracked.ContainerID] = managed(tracked.ContainerID, tracked.ContainerName, 18001, container.StateRunning)

	// A starting record's container is matched by name before its ID is known.
	starting := f.seed(t, "bob", store.StatusStarting, 18002, time.Minute)
	e.containers["new"] = managed("new", starting.ContainerName, 18002, container.StateRunning)

	report := f.sweeper.Sweep(ctx)

	ok, failed := report.Count(StepOrphan)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
	assert.False(t, e.has("orphan"))
	assert.False(t, f.ports.IsReserved(18050))

	assert.True(t, e.has(tracked.ContainerID))
	assert.True(t, e.has("new"))
	assert.True(t, f.ports.IsReserved(18001))
	assert.True(t, f.ports.IsReserved(18002))
}

func TestSweeper_QuotaEviction(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f := newFixture(t, e, 2)

	var records []*store.Record
	for i, age := range []time.Duration{40, 30, 20, 10} {
		rec := f.seed(t, "alice", store.StatusRunning, 18001+i, age*time.Minute)
		e.containers[rec.ContainerID] = managed(rec.ContainerID, rec.ContainerName, rec.HostPort, container.StateRunning)
		records = append(records, rec)
	}
	within := f.seed(t, "bob", store.StatusRunning, 18010, 50*time.Minute)
	e.containers[within.ContainerID] = managed(within.ContainerID, within.ContainerName, 18010, container.StateRunning)

	report := f.sweeper.Sweep(ctx)

	ok, _ := report.Count(StepQuota)
	assert.Equal(t, 2, ok)
	assert.Equal(t, store.StatusStopped, f.status(t, records[0].ID).Status)
	assert.Equal(t, store.StatusStopped, f.status(t, records[1].ID).Status)
	assert.Equal(t, store.StatusRunning, f.status(t, records[2].ID).Status)
	assert.Equal(t, store.StatusRunning, f.status(t, records[3].ID).Status)
	assert.Equal(t, store.StatusRunning, f.status(t, within.ID).Status)

	active, err := f.store.ListByOwner(ctx, "alice", store.ActiveStatuses...)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSweeper_StaleStarting(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f := newFixture(t, e, 3)

	stale := f.seed(t, "alice", store.StatusStarting, 18001, 10*time.Minute)
	recent := f.seed(t, "alice", store.StatusStarting, 18002, time.Minute)

	report := f.sweeper.Sweep(ctx)

	ok, _ := report.Count(StepStale)
	assert.Equal(t, 1, ok)

	got := f.status(t, stale.ID)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "did not complete")
	assert.NotNil(t, got.StoppedAt)
	assert.False(t, f.ports.IsReserved(18001))

	assert.Equal(t, store.StatusStarting, f.status(t, recent.ID).Status)
}

func TestSweeper_Cleanup(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f := newFixture(t, e, 3)

	rec := f.seed(t, "alice", store.StatusRunning, 18001, time.Minute)
	e.containers[rec.ContainerID] = managed(rec.ContainerID, rec.ContainerName, 18001, container.StateExited)

	report := f.sweeper.Sweep(ctx)

	ok, _ := report.Count(StepCleanup)
	assert.Equal(t, 1, ok)
	assert.False(t, e.has(rec.ContainerID))
	assert.Empty(t, f.ports.Reserved())
	assert.Zero(t, report.Reserved)
}

func TestSweeper_EmptySweep(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	f := newFixture(t, e, 3)

	rec := f.seed(t, "alice", store.StatusRunning, 18001, time.Minute)
	e.containers[rec.ContainerID] = managed(rec.ContainerID, rec.ContainerName, 18001, container.StateRunning)
	before := f.status(t, rec.ID)

	var observed *Report
	f.sweeper.cfg.OnSweep = func(r *Report) { observed = r }
	report := f.sweeper.Sweep(ctx)

	assert.True(t, report.Empty())
	assert.Same(t, report, observed)
	assert.Equal(t, before, f.status(t, rec.ID))
	assert.Equal(t, []int{18001}, f.ports.Reserved())
	assert.True(t, e.has(rec.ContainerID))
}

func TestSweeper_RecordsStepErrors(t *testing.T) {
	ctx := context.Background()
	rt := &mocks.RuntimeMock{
		ListManagedFunc: func(context.Context) ([]container.Container, error) {
			return nil, errors.New("daemon unavailable")
		},
	}
	st := store.NewFileStore(filepath.Join(t.TempDir(), "instances.json"))
	alloc, err := ports.NewAllocator(18000, 18010, rt)
	require.NoError(t, err)
	mgr := instance.NewManager(st, rt, alloc, challenge.NewStaticSource(), instance.ManagerConfig{})
	s := New(st, rt, alloc, mgr, Config{Now: func() time.Time { return testNow }})

	report := s.Sweep(ctx)

	assert.Contains(t, report.StepErrors, StepOrphan)
	assert.Contains(t, report.StepErrors, StepCleanup)
	assert.NotContains(t, report.StepErrors, StepExpire)
	assert.NotContains(t, report.StepErrors, StepQuota)
}

func TestSweeper_ForceCleanupAll(t *testing.T) {
	ctx := context.Background()
	e := newEngine(managed("dead", "kryzon_web_x_1", 18060, container.StateDead))
	f := newFixture(t, e, 3)

	var ids []string
	for i := range 3 {
		rec := f.seed(t, fmt.Sprintf("user%d", i), store.StatusRunning, 18001+i, time.Minute)
		e.containers[rec.ContainerID] = managed(rec.ContainerID, rec.ContainerName, rec.HostPort, container.StateRunning)
		ids = append(ids, rec.ID)
	}

	report := f.sweeper.ForceCleanupAll(ctx)

	ok, failed := report.Count(StepForce)
	assert.Equal(t, 3, ok)
	assert.Zero(t, failed)
	for _, id := range ids {
		assert.Equal(t, store.StatusStopped, f.status(t, id).Status)
	}
	assert.False(t, e.has("dead"))
	assert.Empty(t, f.ports.Reserved())
}

func TestSweeper_Stats(t *testing.T) {
	ctx := context.Background()
	e := newEngine(managed("a", "a", 18001, container.StateRunning), managed("b", "b", 18002, container.StateExited))
	f := newFixture(t, e, 3)
	f.seed(t, "alice", store.StatusRunning, 18001, time.Minute)
	f.seed(t, "alice", store.StatusStarting, 18002, time.Minute)

	stats, err := f.sweeper.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInstances)
	assert.Equal(t, 2, stats.ManagedContainers)
	assert.Len(t, stats.ByStatus, 2)
	assert.Equal(t, testNow, stats.Timestamp)
}

func TestSweeper_RebuildPorts(t *testing.T) {
	ctx := context.Background()
	e := newEngine(
		managed("a", "a", 18003, container.StateRunning),
		managed("b", "b", 18004, container.StateExited),
	)
	f := newFixture(t, e, 3)
	f.ports.Rebuild([]int{18007})

	n, err := f.sweeper.RebuildPorts(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{18003}, f.ports.Reserved())
}

func TestSweeper_Run(t *testing.T) {
	e := newEngine()
	f := newFixture(t, e, 3)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan struct{}, 1)
	f.sweeper.cfg.Interval = time.Hour
	f.sweeper.cfg.OnSweep = func(*Report) {
		select {
		case swept <- struct{}{}:
		default:
		}
	}

	done := make(chan error, 1)
	go func() { done <- f.sweeper.Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not run")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
