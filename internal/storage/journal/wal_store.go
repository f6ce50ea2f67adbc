// Package journal keeps an append-only history of balance changes in a WAL.
package journal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/coinpurse/internal/domain"
)

const (
	defaultJournalDir   = "./wal/journal"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	changeKeyPrefix     = "balance_change_"
)

// WALStore persists balance changes in a WAL for history and replay.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the change to the WAL.
func (s *WALStore) Append(change domain.BalanceChange) error {
	if s == nil || s.wal == nil {
		return errors.New("balance journal is not initialized")
	}
	if !change.Symbol.Valid() {
		return errors.Wrapf(domain.ErrUnsupportedSymbol, "journal symbol %q", change.Symbol)
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "marshal balance change")
	}

	key := changeKeyPrefix + change.Symbol.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// After returns all changes written after the provided WAL index, oldest first.
func (s *WALStore) After(index uint64) ([]domain.BalanceChangeRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("balance journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.BalanceChangeRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, changeKeyPrefix) {
			continue
		}
		var change domain.BalanceChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return nil, errors.Wrap(err, "decode balance change")
		}
		records = append(records, domain.BalanceChangeRecord{
			Index:  idx,
			Change: change,
		})
	}

	return records, nil
}

// Last returns up to n most recent changes, oldest first.
func (s *WALStore) Last(n int) ([]domain.BalanceChangeRecord, error) {
	current := s.CurrentIndex()
	var from uint64
	if n > 0 && current > uint64(n) {
		from = current - uint64(n)
	}
	return s.After(from)
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

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("balance journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
