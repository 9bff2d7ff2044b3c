// Copyright (c) Microsoft. All rights reserved.

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	filePrefix = "conversation_"
	fileSuffix = ".json"
)

// FileStore is a [Store] that keeps one JSON document per conversation in a
// directory. Writes replace the document via a temp file and rename, so a
// concurrent reader sees either the previous or the next version.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir. The directory is created on
// first write if it does not exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

// lock returns the writer lock for one conversation id.
func (s *FileStore) lock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, filePrefix+id+fileSuffix)
}

func (s *FileStore) Create(_ context.Context, id string) error {
	if err := Validate(id); err != nil {
		return err
	}
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	if _, err := os.Stat(s.path(id)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, id)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return storageErr("create", id, err)
	}
	return s.write(&Record{ID: id, CreatedAt: now(), Turns: []Turn{}})
}

func (s *FileStore) Load(ctx context.Context, id string) ([]Turn, error) {
	rec, err := s.LoadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Turns, nil
}

// LoadRecord returns the full persisted record, including its creation time.
func (s *FileStore) LoadRecord(_ context.Context, id string) (*Record, error) {
	if err := Validate(id); err != nil {
		return nil, err
	}
	return s.read(id)
}

func (s *FileStore) Append(_ context.Context, id string, turns ...Turn) error {
	if err := Validate(id); err != nil {
		return err
	}
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	rec, err := s.read(id)
	if errors.Is(err, ErrNotFound) {
		rec = &Record{ID: id, CreatedAt: now()}
	} else if err != nil {
		return err
	}
	rec.Turns = append(rec.Turns, stamp(turns)...)
	return s.write(rec)
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, storageErr("list", "", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if Validate(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := Validate(id); err != nil {
		return err
	}
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return storageErr("delete", id, err)
	}

	s.mu.Lock()
	if s.locks[id] == l {
		delete(s.locks, id)
	}
	s.mu.Unlock()
	return nil
}

func (s *FileStore) read(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, storageErr("read", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storageErr("decode", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.Turns == nil {
		rec.Turns = []Turn{}
	}
	return &rec, nil
}

// write must be called with the id's lock held.
func (s *FileStore) write(rec *Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return storageErr("mkdir", rec.ID, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return storageErr("encode", rec.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return storageErr("write", rec.ID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("write", rec.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storageErr("sync", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storageErr("write", rec.ID, err)
	}
	if err := os.Rename(tmpName, s.path(rec.ID)); err != nil {
		os.Remove(tmpName)
		return storageErr("rename", rec.ID, err)
	}
	return nil
}
