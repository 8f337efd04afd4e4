package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	lockTimeout = 5 * time.Second
	fileMode    = 0o644
	dirMode     = 0o755
	fileVersion = 1
)

// stateFile is the on-disk store format.
type stateFile struct {
	Version   int      `json:"version"`
	Instances []Record `json:"instances"`
}

// FileStore keeps records in a single JSON document. The flock makes it safe
// for a daemon and one-shot CLI commands to share the same file.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a JSON-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Create(ctx context.Context, rec *Record) error {
	return s.withExclusiveLock(ctx, func(sf *stateFile) error {
		for i := range sf.Instances {
			e := &sf.Instances[i]
			if e.ID == rec.ID || e.ContainerName == rec.ContainerName {
				return ErrAlreadyExists
			}
			if e.Status.Active() && e.HostPort == rec.HostPort {
				return fmt.Errorf("%w: %d is held by %s", ErrPortConflict, rec.HostPort, e.ID)
			}
		}

		sf.Instances = append(sf.Instances, *rec)
		return nil
	})
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	var result *Record

	err := s.withSharedLock(ctx, func(sf *stateFile) error {
		for i := range sf.Instances {
			if sf.Instances[i].ID == id {
				rec := sf.Instances[i]
				result = &rec
				return nil
			}
		}
		return ErrNotFound
	})

	return result, err
}

func (s *FileStore) ListByOwner(ctx context.Context, ownerID string, statuses ...Status) ([]Record, error) {
	return s.collect(ctx, func(r *Record) bool {
		return r.OwnerID == ownerID && containsStatus(statuses, r.Status)
	}, oldestFirst)
}

func (s *FileStore) ListByStatus(ctx context.Context, statuses ...Status) ([]Record, error) {
	return s.collect(ctx, func(r *Record) bool {
		return containsStatus(statuses, r.Status)
	}, oldestFirst)
}

func (s *FileStore) ListExpired(ctx context.Context, now time.Time) ([]Record, error) {
	return s.collect(ctx, func(r *Record) bool {
		return r.Expired(now)
	}, oldestFirst)
}

func (s *FileStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	result, err := s.collect(ctx, func(r *Record) bool {
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
		if filter.OwnerContains != "" && !strings.Contains(r.OwnerID, filter.OwnerContains) {
			return false
		}
		return true
	}, newestFirst)
	if err != nil {
		return nil, err
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *FileStore) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*Record, error) {
	var result *Record

	err := s.withExclusiveLock(ctx, func(sf *stateFile) error {
		for i := range sf.Instances {
			rec := &sf.Instances[i]
			if rec.ID != id {
				continue
			}
			if !upd.allows(rec.Status) {
				return fmt.Errorf("%w: %s is %s", ErrStatusConflict, id, rec.Status)
			}
			upd.apply(rec)
			updated := *rec
			result = &updated
			return nil
		}
		return ErrNotFound
	})

	return result, err
}

func (s *FileStore) ExtendTTL(ctx context.Context, id string, seconds int) (int, error) {
	var ttl int

	err := s.withExclusiveLock(ctx, func(sf *stateFile) error {
		for i := range sf.Instances {
			rec := &sf.Instances[i]
			if rec.ID != id {
				continue
			}
			if rec.Status != StatusRunning {
				return fmt.Errorf("%w: %s is %s", ErrStatusConflict, id, rec.Status)
			}
			rec.TTLSeconds += seconds
			ttl = rec.TTLSeconds
			return nil
		}
		return ErrNotFound
	})

	return ttl, err
}

func (s *FileStore) Stats(ctx context.Context) ([]StatusStat, error) {
	var result []StatusStat

	err := s.withSharedLock(ctx, func(sf *stateFile) error {
		result = aggregate(sf.Instances)
		return nil
	})

	return result, err
}

// Close is a no-op; the file is only held open while locked.
func (s *FileStore) Close() error {
	return nil
}

// aggregate groups records by status in lifecycle order.
func aggregate(records []Record) []StatusStat {
	type acc struct {
		count    int
		finished int
		total    time.Duration
	}
	by := make(map[Status]*acc)
	for i := range records {
		r := &records[i]
		a := by[r.Status]
		if a == nil {
			a = &acc{}
			by[r.Status] = a
		}
		a.count++
		if r.StoppedAt != nil {
			a.finished++
			a.total += r.StoppedAt.Sub(r.StartedAt)
		}
	}

	var result []StatusStat
	for _, st := range allStatuses {
		a := by[st]
		if a == nil {
			continue
		}
		stat := StatusStat{Status: st, Count: a.count}
		if a.finished > 0 {
			stat.AvgDuration = a.total / time.Duration(a.finished)
		}
		result = append(result, stat)
	}
	return result
}

func oldestFirst(a, b *Record) bool { return a.StartedAt.Before(b.StartedAt) }
func newestFirst(a, b *Record) bool { return a.StartedAt.After(b.StartedAt) }

// collect returns copies of the records matching keep, sorted by less.
func (s *FileStore) collect(ctx context.Context, keep func(*Record) bool, less func(a, b *Record) bool) ([]Record, error) {
	var result []Record

	err := s.withSharedLock(ctx, func(sf *stateFile) error {
		for i := range sf.Instances {
			if keep(&sf.Instances[i]) {
				result = append(result, sf.Instances[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool { return less(&result[i], &result[j]) })
	return result, nil
}

// withSharedLock executes fn with a shared (read) lock.
func (s *FileStore) withSharedLock(ctx context.Context, fn func(*stateFile) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sf, file, err := s.openAndLock(ctx, false)
	if err != nil {
		return err
	}
	defer s.unlockAndClose(file)

	return fn(sf)
}

// withExclusiveLock executes fn with an exclusive (write) lock.
// Changes made by fn are persisted to disk.
func (s *FileStore) withExclusiveLock(ctx context.Context, fn func(*stateFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, file, err := s.openAndLock(ctx, true)
	if err != nil {
		return err
	}
	defer s.unlockAndClose(file)

	if err := fn(sf); err != nil {
		return err
	}

	return s.save(sf)
}

// openAndLock opens the state file and acquires a lock.
func (s *FileStore) openAndLock(ctx context.Context, exclusive bool) (*stateFile, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return nil, nil, fmt.Errorf("create store directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, nil, fmt.Errorf("open store file: %w", err)
	}

	lockType := syscall.LOCK_SH
	if exclusive {
		lockType = syscall.LOCK_EX
	}

	if err := s.acquireLock(ctx, file, lockType); err != nil {
		file.Close()
		return nil, nil, err
	}

	sf, err := s.load(file)
	if err != nil {
		s.unlockAndClose(file)
		return nil, nil, err
	}

	return sf, file, nil
}

// acquireLock polls for a file lock until lockTimeout elapses.
func (s *FileStore) acquireLock(ctx context.Context, file *os.File, lockType int) error {
	deadline := time.Now().Add(lockTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := syscall.Flock(int(file.Fd()), lockType|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != syscall.EWOULDBLOCK {
			return fmt.Errorf("acquire file lock: %w", err)
		}

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *FileStore) unlockAndClose(file *os.File) {
	syscall.Flock(int(file.Fd()), syscall.LOCK_UN) //nolint:errcheck // closing the file releases it anyway
	file.Close()
}

// load reads and parses the state file.
func (s *FileStore) load(file *os.File) (*stateFile, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat store file: %w", err)
	}

	if info.Size() == 0 {
		return &stateFile{Version: fileVersion, Instances: []Record{}}, nil
	}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek store file: %w", err)
	}

	var sf stateFile
	if err := json.NewDecoder(file).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	for i := range sf.Instances {
		if _, err := ParseStatus(string(sf.Instances[i].Status)); err != nil {
			return nil, fmt.Errorf("decode store file: instance %s: %w", sf.Instances[i].ID, err)
		}
	}

	return &sf, nil
}

// save writes the state file atomically.
func (s *FileStore) save(sf *stateFile) error {
	sf.Version = fileVersion

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "instances-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sf); err != nil {
		tmp.Close()
		return fmt.Errorf("encode store: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename store file: %w", err)
	}

	tmpPath = ""
	return nil
}
