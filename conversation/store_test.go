// Copyright (c) Microsoft. All rights reserved.

package conversation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergent-analytics-ai-01/UWEPD/conversation"
)

// stores runs a test against every Store implementation.
func stores(t *testing.T) map[string]conversation.Store {
	t.Helper()
	return map[string]conversation.Store{
		"file":   conversation.NewFileStore(t.TempDir()),
		"memory": conversation.NewMemoryStore(),
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := []string{"What is MCP?", "MCP is a protocol.", "Thanks", "You're welcome"}
			for i, text := range want {
				turn := conversation.NewUserTurn(text)
				if i%2 == 1 {
					turn = conversation.NewAssistantTurn(text, fmt.Sprintf("msg_%d", i))
				}
				require.NoError(t, store.Append(ctx, "t1", turn))
			}

			turns, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			require.Len(t, turns, len(want))
			for i, turn := range turns {
				assert.Equal(t, want[i], turn.Text)
				assert.False(t, turn.Timestamp.IsZero())
			}
			assert.Equal(t, conversation.RoleAssistant, turns[1].Role)
			assert.Equal(t, "msg_1", turns[1].MessageID)
		})
	}
}

func TestStore_LoadUnknownAndCreated(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx, "never-seen")
			require.ErrorIs(t, err, conversation.ErrNotFound)

			require.NoError(t, store.Create(ctx, "fresh"))
			turns, err := store.Load(ctx, "fresh")
			require.NoError(t, err)
			assert.NotNil(t, turns)
			assert.Empty(t, turns)

			err = store.Create(ctx, "fresh")
			assert.ErrorIs(t, err, conversation.ErrExists)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ids, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			for _, id := range []string{"b", "a", "c"} {
				require.NoError(t, store.Append(ctx, id, conversation.NewUserTurn("hi "+id)))
			}

			ids, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids)

			again, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, ids, again, "listing is stable")

			require.NoError(t, store.Delete(ctx, "b"))
			ids, err = store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, ids)

			assert.ErrorIs(t, store.Delete(ctx, "b"), conversation.ErrNotFound)
			_, err = store.Load(ctx, "b")
			assert.ErrorIs(t, err, conversation.ErrNotFound)
		})
	}
}

func TestStore_InvalidIDs(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"", "  ", "../escape", "a/b", `a\b`} {
				assert.ErrorIs(t, store.Append(ctx, id, conversation.NewUserTurn("x")), conversation.ErrInvalidID, "id %q", id)
				_, err := store.Load(ctx, id)
				assert.ErrorIs(t, err, conversation.ErrInvalidID, "id %q", id)
			}
		})
	}
}

func TestStore_ToolTurnRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			call := conversation.ToolCall{
				CallID:      "call_1",
				Name:        "microsoft_docs_search",
				ServerLabel: "mslearn",
				Type:        "mcp",
				Arguments:   json.RawMessage(`{"query":"azure functions"}`),
				Output:      json.RawMessage(`[{"title":"Azure Functions overview"}]`),
			}
			require.NoError(t, store.Append(ctx, "t1", conversation.NewToolTurn(call)))

			turns, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			require.Len(t, turns, 1)
			require.True(t, turns[0].IsTool())
			assert.Equal(t, "microsoft_docs_search", turns[0].Tool.Name)
			assert.JSONEq(t, `{"query":"azure functions"}`, string(turns[0].Tool.Arguments))
			assert.JSONEq(t, `[{"title":"Azure Functions overview"}]`, string(turns[0].Tool.Output))
		})
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Append(ctx, "t1", conversation.NewUserTurn("hello")))

			turns, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			turns[0].Text = "modified"

			again, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, "hello", again[0].Text)
		})
	}
}

func TestStore_ConcurrentAppendSameID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 16

			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					text := fmt.Sprintf("writer-%02d", i)
					assert.NoError(t, store.Append(ctx, "shared",
						conversation.NewUserTurn(text),
						conversation.NewAssistantTurn("reply-"+text, ""),
					))
				}(i)
			}
			wg.Wait()

			turns, err := store.Load(ctx, "shared")
			require.NoError(t, err)
			require.Len(t, turns, writers*2)

			// Each batch lands contiguously.
			for i := 0; i < len(turns); i += 2 {
				require.Equal(t, conversation.RoleUser, turns[i].Role)
				assert.Equal(t, "reply-"+turns[i].Text, turns[i+1].Text)
			}
		})
	}
}

func TestStore_ConcurrentReadersNeverSeePartialWrites(t *testing.T) {
	store := conversation.NewFileStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "t1"))

	const appends = 50
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < appends; i++ {
			assert.NoError(t, store.Append(ctx, "t1", conversation.NewUserTurn(fmt.Sprintf("turn %d", i))))
		}
	}()

	last := 0
	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
		}
		turns, err := store.Load(ctx, "t1")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(turns), last, "log never shrinks")
		for i, turn := range turns {
			require.Equal(t, fmt.Sprintf("turn %d", i), turn.Text)
		}
		last = len(turns)
	}
	wg.Wait()
}

func TestOpen(t *testing.T) {
	_, ok := conversation.Open(conversation.Config{}).(*conversation.MemoryStore)
	assert.True(t, ok, "empty dir selects memory store")

	dir := t.TempDir()
	fs, ok := conversation.Open(conversation.Config{Dir: dir}).(*conversation.FileStore)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir())
}

func TestNewID(t *testing.T) {
	a, b := conversation.NewID(), conversation.NewID()
	assert.NotEqual(t, a, b)
	assert.NoError(t, conversation.Validate(a))
}
