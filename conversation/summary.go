// Copyright (c) Microsoft. All rights reserved.

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	snippetLimit = 60
	defaultTitle = "Chat"
	ellipsis     = "..."
)

// Summary describes a stored conversation for listing and resume menus.
type Summary struct {
	ID          string
	CreatedAt   time.Time
	Title       string // first user message
	LastRole    Role
	LastSnippet string
	TurnCount   int
}

// RecordLoader is implemented by stores that can return a full [Record].
type RecordLoader interface {
	LoadRecord(ctx context.Context, id string) (*Record, error)
}

// Summarize returns a summary of every conversation in store, newest first.
// Conversations deleted while summarizing are skipped, and so are records
// that cannot be read or decoded; those are logged and stay reportable
// through Load.
func Summarize(ctx context.Context, store Store) ([]Summary, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		rec, err := loadRecord(ctx, store, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if errors.Is(err, ErrStorageUnavailable) {
			slog.WarnContext(ctx, "skipping unreadable conversation",
				"conversation_id", id,
				"error", err,
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(rec))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func loadRecord(ctx context.Context, store Store, id string) (*Record, error) {
	if rl, ok := store.(RecordLoader); ok {
		return rl.LoadRecord(ctx, id)
	}
	turns, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := &Record{ID: id, Turns: turns}
	if len(turns) > 0 {
		rec.CreatedAt = turns[0].Timestamp
	}
	return rec, nil
}

func summarize(rec *Record) Summary {
	s := Summary{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Title:     defaultTitle,
		TurnCount: len(rec.Turns),
	}
	for _, t := range rec.Turns {
		if t.Role == RoleUser && t.Text != "" {
			s.Title = t.Text
			break
		}
	}
	if n := len(rec.Turns); n > 0 {
		last := rec.Turns[n-1]
		s.LastRole = last.Role
		s.LastSnippet = Snippet(last.Text)
	}
	return s
}

// Snippet shortens text for single-line display.
func Snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= snippetLimit {
		return text
	}
	return string(r[:snippetLimit-len(ellipsis)]) + ellipsis
}
