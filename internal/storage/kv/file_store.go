package kv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const fileStoreVersion = 1

// FileStore persists all keys in one JSON document.
// Every call goes to disk so several processes sharing the file see each other's writes.
type FileStore struct {
	path   string
	mu     sync.Mutex
	closed bool
}

type fileState struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// NewFileStore creates a store backed by the file at path, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create file store dir")
	}

	return &FileStore{path: path}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}

	state, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := state.Values[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	return s.update(func(values map[string]string) {
		values[key] = value
	})
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	return s.update(func(values map[string]string) {
		delete(values, key)
	})
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) update(fn func(values map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	state, err := s.load()
	if err != nil {
		return err
	}
	fn(state.Values)
	return s.save(state)
}

func (s *FileStore) load() (fileState, error) {
	state := fileState{Version: fileStoreVersion, Values: map[string]string{}}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, errors.Wrap(err, "read balances file")
	}
	if len(payload) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(payload, &state); err != nil {
		return state, errors.Wrap(err, "decode balances file")
	}
	if state.Values == nil {
		state.Values = map[string]string{}
	}
	return state, nil
}

// save writes through a temp file and renames it over the target.
func (s *FileStore) save(state fileState) error {
	state.Version = fileStoreVersion
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode balances file")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write balances temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist balances file")
	}
	return nil
}
