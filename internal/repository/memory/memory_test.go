package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/archipelago/internal/model"
)

func TestUserUpsert(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()

	u, err := users.Upsert(ctx, "dev", "alice", "Alice", "")
	require.NoError(t, err)
	again, err := users.Upsert(ctx, "dev", "alice", "Alice B", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Alice B", again.DisplayName)

	found, err := users.FindByProviderID(ctx, "dev", "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", found.AvatarURL)

	require.NoError(t, users.UpdateDisplayName(ctx, u.ID, "Al"))
	found, _ = users.FindByID(ctx, u.ID)
	assert.Equal(t, "Al", found.DisplayName)

	missing, err := users.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Error(t, users.UpdateDisplayName(ctx, "nope", "x"))
}

func TestMatchLifecycle(t *testing.T) {
	ctx := context.Background()
	matches := NewStore().Matches()

	m, err := matches.Create(ctx, "m", "alice", 2, true)
	require.NoError(t, err)
	assert.Equal(t, model.MatchWaiting, m.Status)

	require.NoError(t, matches.Join(ctx, m.ID, "alice"))
	require.NoError(t, matches.Join(ctx, m.ID, "bob"))
	require.NoError(t, matches.Join(ctx, m.ID, "alice"))
	n, _ := matches.PlayerCount(ctx, m.ID)
	assert.Equal(t, 2, n)

	open, _ := matches.ListOpen(ctx)
	assert.Len(t, open, 1)

	require.NoError(t, matches.Start(ctx, m.ID, 42))
	assert.Error(t, matches.Start(ctx, m.ID, 42), "second start")

	got, _ := matches.FindByID(ctx, m.ID)
	assert.Equal(t, model.MatchActive, got.Status)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, []string{"alice", "bob"}, got.PlayerIDs())

	active, _ := matches.ListActive(ctx)
	assert.Len(t, active, 1)
	mine, _ := matches.ListByUser(ctx, "bob")
	assert.Len(t, mine, 1)

	require.NoError(t, matches.SetFinished(ctx, m.ID, []string{"bob"}))
	got, _ = matches.FindByID(ctx, m.ID)
	assert.Equal(t, model.MatchFinished, got.Status)
	assert.Equal(t, []string{"bob"}, got.Winners)
	assert.NotNil(t, got.FinishedAt)
}

func TestReturnedMatchesAreCopies(t *testing.T) {
	ctx := context.Background()
	matches := NewStore().Matches()
	m, _ := matches.Create(ctx, "m", "alice", 2, false)
	require.NoError(t, matches.Join(ctx, m.ID, "alice"))

	got, _ := matches.FindByID(ctx, m.ID)
	got.Players[0].UserID = "mallory"

	again, _ := matches.FindByID(ctx, m.ID)
	assert.Equal(t, "alice", again.Players[0].UserID)
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	m, _ := s.Matches().Create(ctx, "m", "alice", 2, false)
	intents := s.Intents()

	for _, seq := range []int{2, 1} {
		require.NoError(t, intents.Append(ctx, &model.Intent{MatchID: m.ID, Seq: seq, Kind: "pass", Payload: json.RawMessage(`{}`)}))
	}
	assert.ErrorIs(t, intents.Append(ctx, &model.Intent{MatchID: m.ID, Seq: 1}), ErrSeqConflict)

	rows, err := intents.ListByMatch(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Seq)
	assert.Equal(t, 2, rows[1].Seq)
	assert.NotEmpty(t, rows[0].ID)

	require.NoError(t, s.Matches().Delete(ctx, m.ID))
	rows, _ = intents.ListByMatch(ctx, m.ID)
	assert.Empty(t, rows)
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	cache := NewStore().Cache()

	require.NoError(t, cache.SetSnapshot(ctx, "m1", json.RawMessage(`{"round":1}`)))
	snap, err := cache.GetSnapshot(ctx, "m1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"round":1}`, string(snap))

	deadline := time.Now().Add(time.Minute)
	require.NoError(t, cache.SetTimer(ctx, "m1", deadline))
	got, ok := cache.Timer("m1")
	assert.True(t, ok)
	assert.True(t, deadline.Equal(got))

	require.NoError(t, cache.ClearTimer(ctx, "m1"))
	_, ok = cache.Timer("m1")
	assert.False(t, ok)

	require.NoError(t, cache.SetTimer(ctx, "m1", deadline))
	require.NoError(t, cache.DeleteMatchData(ctx, "m1"))
	snap, _ = cache.GetSnapshot(ctx, "m1")
	assert.Empty(t, snap)
	_, ok = cache.Timer("m1")
	assert.False(t, ok)
}
