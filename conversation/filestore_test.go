// Copyright (c) Microsoft. All rights reserved.

package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_CreatesDirectoryOnFirstWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "memory")
	store := NewFileStore(dir)
	ctx := context.Background()

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "reads do not create the directory")

	require.NoError(t, store.Append(ctx, "t1", NewUserTurn("hello")))
	require.NoError(t, store.Append(ctx, "t2", NewUserTurn("hello again")))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(dir, "conversation_t1.json"))
}

func TestFileStore_DistinctIDsDoNotBlock(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	// Hold the writer lock for "a" as if a slow append were in progress.
	l := store.lock("a")
	l.Lock()
	defer l.Unlock()

	done := make(chan error, 1)
	go func() { done <- store.Append(ctx, "b", NewUserTurn("independent")) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("append to b blocked behind a")
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewFileStore(dir)
	require.NoError(t, first.Append(ctx, "t1", NewUserTurn("What is MCP?")))

	second := NewFileStore(dir)
	turns, err := second.Load(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "What is MCP?", turns[0].Text)

	rec, err := second.LoadRecord(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestFileStore_CorruptRecordIsReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conversation_bad.json"), []byte("{not json"), 0o644))

	store := NewFileStore(dir)
	_, err := store.Load(context.Background(), "bad")
	require.ErrorIs(t, err, ErrStorageUnavailable)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "decode", se.Op)
	assert.Equal(t, "bad", se.ConversationID)

	err = store.Append(context.Background(), "bad", NewUserTurn("x"))
	assert.ErrorIs(t, err, ErrStorageUnavailable, "append never overwrites a corrupt record")
}

func TestFileStore_UnwritableDirectory(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// dir sits below a regular file, so MkdirAll fails.
	store := NewFileStore(filepath.Join(blocker, "memory"))
	err := store.Append(context.Background(), "t1", NewUserTurn("hello"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestFileStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".tmp-123", "notes.txt", "conversation_.json", "conversation_ok.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{"turns":[]}`), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "conversation_dir.json"), 0o755))

	ids, err := NewFileStore(dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ids)
}

func TestFileStore_StampsZeroTimestamps(t *testing.T) {
	fixed := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	defer func() { now = orig }()

	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "t1", Turn{Role: RoleUser, Text: "no time"}))

	turns, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(turns[0].Timestamp))
}

func TestFileStore_DeleteDropsWriterLock(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, id, NewUserTurn("hello")))
		require.NoError(t, store.Delete(ctx, id))
	}
	store.mu.Lock()
	n := len(store.locks)
	store.mu.Unlock()
	assert.Zero(t, n)

	require.NoError(t, store.Append(ctx, "a", NewUserTurn("again")))
	turns, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}
