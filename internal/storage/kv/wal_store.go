package kv

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWALDir    = "./wal/balances"
	walSegmentLimit  = 1000
	walMaxSegments   = 10
	walStateKey      = "balances_state"
	walSegmentPrefix = "balances_"
)

// WALStore appends every mutation to a write-ahead log.
// Each record holds the complete key set, so recovery only needs the latest record
// and segment rotation never loses a key.
type WALStore struct {
	wal    *gowal.Wal
	mu     sync.RWMutex
	values map[string]string
}

// NewWALStore opens (or creates) the log under dir and restores the latest state.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultWALDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           walSegmentPrefix,
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balances WAL")
	}

	s := &WALStore{wal: wal, values: map[string]string{}}
	if err := s.restore(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	return s, nil
}

func (s *WALStore) restore() error {
	current := s.wal.CurrentIndex()
	if current == 0 {
		return nil
	}

	key, payload, err := s.wal.Get(current)
	if err != nil {
		return errors.Wrapf(err, "read balances WAL record %d", current)
	}
	if key != walStateKey {
		return errors.Errorf("balances WAL record %d has unexpected key %q", current, key)
	}
	if err := json.Unmarshal(payload, &s.values); err != nil {
		return errors.Wrap(err, "decode balances WAL record")
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	return nil
}

func (s *WALStore) Get(_ context.Context, key string) (string, bool, error) {
	if s == nil || s.wal == nil {
		return "", false, errors.New("balances WAL store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

func (s *WALStore) Set(_ context.Context, key, value string) error {
	return s.apply(func(values map[string]string) {
		values[key] = value
	})
}

func (s *WALStore) Remove(_ context.Context, key string) error {
	return s.apply(func(values map[string]string) {
		delete(values, key)
	})
}

// apply writes the mutated key set to the log before making it visible to readers.
func (s *WALStore) apply(fn func(values map[string]string)) error {
	if s == nil || s.wal == nil {
		return errors.New("balances WAL store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	fn(next)

	payload, err := json.Marshal(next)
	if err != nil {
		return errors.Wrap(err, "marshal balances state")
	}

	if err := s.wal.Write(s.wal.CurrentIndex()+1, walStateKey, payload); err != nil {
		return errors.Wrap(err, "append balances WAL record")
	}

	s.values = next
	return nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("balances WAL store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
