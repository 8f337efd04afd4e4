package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(id, owner string, port int, status Status, startedAt time.Time) *Record {
	rec := &Record{
		ID:            id,
		ContainerName: "kryzon_web_" + owner + "_" + id,
		OwnerID:       owner,
		ChallengeSlug: "web",
		HostPort:      port,
		HostURL:       "http://vm-" + id + ".ctf.local",
		TTLSeconds:    3600,
		Status:        status,
		StartedAt:     startedAt,
	}
	if status.Terminal() {
		stopped := startedAt.Add(10 * time.Minute)
		rec.StoppedAt = &stopped
	}
	return rec
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "instances.json"))
}

func TestNewFileStore(t *testing.T) {
	s := NewFileStore("/tmp/instances.json")

	require.NotNil(t, s)
	assert.Equal(t, "/tmp/instances.json", s.Path())
}

func TestFileStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates record", func(t *testing.T) {
		s := newTestStore(t)
		rec := newRecord("a1", "alice", 18000, StatusStarting, base)

		require.NoError(t, s.Create(ctx, rec))

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, rec.ContainerName, got.ContainerName)
		assert.Equal(t, StatusStarting, got.Status)
		assert.True(t, got.StartedAt.Equal(base))
		assert.Nil(t, got.StoppedAt)
	})

	t.Run("returns ErrAlreadyExists for duplicate ID", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))

		dup := newRecord("a1", "bob", 18001, StatusStarting, base)
		dup.ContainerName = "other"
		err := s.Create(ctx, dup)

		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("returns ErrAlreadyExists for duplicate container name", func(t *testing.T) {
		s := newTestStore(t)
		first := newRecord("a1", "alice", 18000, StatusRunning, base)
		require.NoError(t, s.Create(ctx, first))

		dup := newRecord("a2", "alice", 18001, StatusStarting, base)
		dup.ContainerName = first.ContainerName
		err := s.Create(ctx, dup)

		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("rejects port held by active record", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))

		err := s.Create(ctx, newRecord("a2", "bob", 18000, StatusStarting, base))

		assert.ErrorIs(t, err, ErrPortConflict)
		assert.NotErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("allows port held by terminal record", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusStopped, base)))

		err := s.Create(ctx, newRecord("a2", "bob", 18000, StatusStarting, base))

		assert.NoError(t, err)
	})
}

func TestFileStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ErrNotFound for missing ID", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.Get(ctx, "nonexistent")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returns a copy", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		got.Status = StatusFailed

		again, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, again.Status)
	})
}

func TestFileStore_Lists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Create(ctx, newRecord("a2", "alice", 18001, StatusRunning, base.Add(2*time.Minute))))
	require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusStarting, base)))
	require.NoError(t, s.Create(ctx, newRecord("a3", "alice", 18002, StatusStopped, base.Add(time.Minute))))
	require.NoError(t, s.Create(ctx, newRecord("b1", "bob", 18003, StatusRunning, base.Add(3*time.Minute))))
	require.NoError(t, s.Create(ctx, newRecord("c1", "carol-team", 18004, StatusFailed, base.Add(4*time.Minute))))

	ids := func(records []Record) []string {
		out := make([]string, len(records))
		for i := range records {
			out[i] = records[i].ID
		}
		return out
	}

	t.Run("ListByOwner filters by status oldest first", func(t *testing.T) {
		got, err := s.ListByOwner(ctx, "alice", ActiveStatuses...)

		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, ids(got))
	})

	t.Run("ListByOwner without statuses returns all", func(t *testing.T) {
		got, err := s.ListByOwner(ctx, "alice")

		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a3", "a2"}, ids(got))
	})

	t.Run("ListByStatus", func(t *testing.T) {
		got, err := s.ListByStatus(ctx, StatusRunning)

		require.NoError(t, err)
		assert.Equal(t, []string{"a2", "b1"}, ids(got))
	})

	t.Run("ListExpired returns only running records past TTL", func(t *testing.T) {
		got, err := s.ListExpired(ctx, base.Add(time.Hour+150*time.Second))

		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, ids(got))
	})

	t.Run("List returns newest first", func(t *testing.T) {
		got, err := s.List(ctx, ListFilter{})

		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "b1", "a2", "a3", "a1"}, ids(got))
	})

	t.Run("List applies filter and limit", func(t *testing.T) {
		got, err := s.List(ctx, ListFilter{Status: StatusRunning, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(got))

		got, err = s.List(ctx, ListFilter{OwnerContains: "team"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, ids(got))
	})
}

func TestFileStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("applies conditional transition", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusStarting, base)))

		got, err := s.UpdateStatus(ctx, "a1", StatusUpdate{
			To:          StatusRunning,
			From:        []Status{StatusStarting},
			ContainerID: "c0ffee",
		})

		require.NoError(t, err)
		assert.Equal(t, StatusRunning, got.Status)
		assert.Equal(t, "c0ffee", got.ContainerID)

		stored, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, stored.Status)
	})

	t.Run("returns ErrStatusConflict when precondition fails", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))

		_, err := s.UpdateStatus(ctx, "a1", StatusUpdate{To: StatusRunning, From: []Status{StatusStarting}})

		assert.ErrorIs(t, err, ErrStatusConflict)
	})

	t.Run("never leaves a terminal status", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusStopped, base)))

		_, err := s.UpdateStatus(ctx, "a1", StatusUpdate{To: StatusFailed})

		assert.ErrorIs(t, err, ErrStatusConflict)
	})

	t.Run("records stop time and error", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))
		stopped := base.Add(time.Minute)

		got, err := s.UpdateStatus(ctx, "a1", StatusUpdate{
			To:           StatusFailed,
			ErrorMessage: "boom",
			StoppedAt:    &stopped,
		})

		require.NoError(t, err)
		assert.Equal(t, "boom", got.ErrorMessage)
		require.NotNil(t, got.StoppedAt)
		assert.True(t, got.StoppedAt.Equal(stopped))
	})

	t.Run("returns ErrNotFound for missing ID", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.UpdateStatus(ctx, "missing", StatusUpdate{To: StatusStopped})

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFileStore_ExtendTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("extends running record", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))

		ttl, err := s.ExtendTTL(ctx, "a1", 7200)

		require.NoError(t, err)
		assert.Equal(t, 10800, ttl)
	})

	t.Run("rejects non-running record", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusStarting, base)))

		_, err := s.ExtendTTL(ctx, "a1", 3600)

		assert.ErrorIs(t, err, ErrStatusConflict)
	})

	t.Run("returns ErrNotFound for missing ID", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.ExtendTTL(ctx, "missing", 3600)

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFileStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))
	require.NoError(t, s.Create(ctx, newRecord("a2", "alice", 18001, StatusStopped, base)))
	require.NoError(t, s.Create(ctx, newRecord("a3", "bob", 18002, StatusStopped, base)))

	stats, err := s.Stats(ctx)

	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, StatusStat{Status: StatusRunning, Count: 1}, stats[0])
	assert.Equal(t, StatusStat{Status: StatusStopped, Count: 2, AvgDuration: 10 * time.Minute}, stats[1])
}

func TestFileStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "instances.json")

	require.NoError(t, NewFileStore(path).Create(ctx, newRecord("a1", "alice", 18000, StatusRunning, base)))

	got, err := NewFileStore(path).Get(ctx, "a1")

	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
}

func TestFileStore_RejectsUnknownStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	data := `{"version":1,"instances":[{"id":"a1","status":"paused"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := NewFileStore(path).Get(context.Background(), "a1")

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestFileStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("i%02d", i)
			assert.NoError(t, s.Create(ctx, newRecord(id, "alice", 18000+i, StatusStarting, base)))
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestStatus(t *testing.T) {
	t.Run("transitions", func(t *testing.T) {
		assert.True(t, StatusStarting.CanTransition(StatusRunning))
		assert.True(t, StatusStarting.CanTransition(StatusFailed))
		assert.True(t, StatusRunning.CanTransition(StatusStopped))
		assert.False(t, StatusRunning.CanTransition(StatusStarting))
		assert.False(t, StatusStopped.CanTransition(StatusRunning))
		assert.False(t, StatusFailed.CanTransition(StatusStopped))
	})

	t.Run("ParseStatus rejects unknown values", func(t *testing.T) {
		_, err := ParseStatus("paused")

		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestRecord_TimeRemaining(t *testing.T) {
	rec := newRecord("a1", "alice", 18000, StatusRunning, base)

	assert.Equal(t, 30*time.Minute, rec.TimeRemaining(base.Add(30*time.Minute)))
	assert.Equal(t, time.Duration(0), rec.TimeRemaining(base.Add(2*time.Hour)))
	assert.False(t, rec.Expired(base.Add(time.Hour)))
	assert.True(t, rec.Expired(base.Add(time.Hour+time.Second)))
}
