// Copyright (c) Microsoft. All rights reserved.

package conversation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_NewestFirstWithPreview(t *testing.T) {
	base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	orig := now
	now = func() time.Time { tick = tick.Add(time.Minute); return tick }
	defer func() { now = orig }()

	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "old", NewUserTurn("What is MCP?"), NewAssistantTurn("A protocol.", "m1")))
	require.NoError(t, store.Create(ctx, "empty"))
	long := strings.Repeat("word ", 30)
	require.NoError(t, store.Append(ctx, "new", NewUserTurn("Tell me about Azure"), NewAssistantTurn(long, "m2")))

	got, err := Summarize(ctx, store)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"new", "empty", "old"}, []string{got[0].ID, got[1].ID, got[2].ID})

	assert.Equal(t, "Tell me about Azure", got[0].Title)
	assert.Equal(t, RoleAssistant, got[0].LastRole)
	assert.Len(t, []rune(got[0].LastSnippet), 60)
	assert.True(t, strings.HasSuffix(got[0].LastSnippet, "..."))

	assert.Equal(t, "Chat", got[1].Title)
	assert.Equal(t, 0, got[1].TurnCount)
	assert.Empty(t, got[1].LastSnippet)

	assert.Equal(t, "A protocol.", got[2].LastSnippet)
	assert.Equal(t, 2, got[2].TurnCount)
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "hello", "hello"},
		{"collapses whitespace", "hello\n\n  world", "hello world"},
		{"exact limit", strings.Repeat("a", 60), strings.Repeat("a", 60)},
		{"truncated", strings.Repeat("a", 61), strings.Repeat("a", 57) + "..."},
		{"runes", strings.Repeat("é", 70), strings.Repeat("é", 57) + "..."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Snippet(tc.in))
		})
	}
}

func TestSummarize_SkipsUnreadableRecords(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "good", NewUserTurn("hello"), NewAssistantTurn("hi", "m1")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conversation_bad.json"), []byte("{not json"), 0o644))

	got, err := Summarize(ctx, store)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)

	_, err = store.Load(ctx, "bad")
	assert.ErrorIs(t, err, ErrStorageUnavailable, "the corrupt record is still reported on load")
}
