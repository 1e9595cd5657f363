package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/freeeve/archipelago/internal/model"
)

type mockMatchRepo struct {
	mu      sync.Mutex
	matches map[string]*model.Match
	players map[string][]model.MatchPlayer
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{
		matches: make(map[string]*model.Match),
		players: make(map[string][]model.MatchPlayer),
	}
}

func (m *mockMatchRepo) Create(_ context.Context, name, creatorID string, numPlayers int, expert bool) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := &model.Match{
		ID:         fmt.Sprintf("match-%d", len(m.matches)+1),
		Name:       name,
		CreatorID:  creatorID,
		Status:     model.MatchWaiting,
		NumPlayers: numPlayers,
		Expert:     expert,
		CreatedAt:  time.Now(),
	}
	m.matches[match.ID] = match
	return match, nil
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	cp.Players = append([]model.MatchPlayer(nil), m.players[id]...)
	return &cp, nil
}

func (m *mockMatchRepo) listWhere(keep func(*model.Match) bool) []model.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Match
	for id, match := range m.matches {
		if keep(match) {
			cp := *match
			cp.Players = append([]model.MatchPlayer(nil), m.players[id]...)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockMatchRepo) ListOpen(_ context.Context) ([]model.Match, error) {
	return m.listWhere(func(match *model.Match) bool { return match.Status == model.MatchWaiting }), nil
}

func (m *mockMatchRepo) ListByUser(_ context.Context, userID string) ([]model.Match, error) {
	return m.listWhere(func(match *model.Match) bool {
		if match.CreatorID == userID {
			return true
		}
		for _, p := range m.players[match.ID] {
			if p.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockMatchRepo) ListActive(_ context.Context) ([]model.Match, error) {
	return m.listWhere(func(match *model.Match) bool { return match.Status == model.MatchActive }), nil
}

func (m *mockMatchRepo) Join(_ context.Context, matchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players[matchID] {
		if p.UserID == userID {
			return nil
		}
	}
	m.players[matchID] = append(m.players[matchID], model.MatchPlayer{
		MatchID:  matchID,
		UserID:   userID,
		Seat:     len(m.players[matchID]),
		JoinedAt: time.Now(),
	})
	return nil
}

func (m *mockMatchRepo) PlayerCount(_ context.Context, matchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players[matchID]), nil
}

func (m *mockMatchRepo) Start(_ context.Context, matchID string, seed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok || match.Status != model.MatchWaiting {
		return fmt.Errorf("start match %s: not waiting", matchID)
	}
	now := time.Now()
	match.Status = model.MatchActive
	match.Seed = seed
	match.StartedAt = &now
	return nil
}

func (m *mockMatchRepo) SetFinished(_ context.Context, matchID string, winners []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match, ok := m.matches[matchID]; ok {
		now := time.Now()
		match.Status = model.MatchFinished
		match.Winners = winners
		match.FinishedAt = &now
	}
	return nil
}

func (m *mockMatchRepo) Delete(_ context.Context, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, matchID)
	delete(m.players, matchID)
	return nil
}

// addActive inserts a started match with the given seats.
func (m *mockMatchRepo) addActive(id string, seed int64, expert bool, userIDs ...string) *model.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := &model.Match{
		ID:         id,
		Name:       id,
		CreatorID:  userIDs[0],
		Status:     model.MatchActive,
		NumPlayers: len(userIDs),
		Expert:     expert,
		Seed:       seed,
	}
	m.matches[id] = match
	for i, u := range userIDs {
		m.players[id] = append(m.players[id], model.MatchPlayer{MatchID: id, UserID: u, Seat: i})
	}
	cp := *match
	cp.Players = append([]model.MatchPlayer(nil), m.players[id]...)
	return &cp
}

type mockIntentRepo struct {
	mu      sync.Mutex
	rows    map[string][]model.Intent
	failErr error
}

func newMockIntentRepo() *mockIntentRepo {
	return &mockIntentRepo{rows: make(map[string][]model.Intent)}
}

func (r *mockIntentRepo) Append(_ context.Context, in *model.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	for _, row := range r.rows[in.MatchID] {
		if row.Seq == in.Seq {
			return errors.New("duplicate seq")
		}
	}
	in.ID = fmt.Sprintf("intent-%s-%d", in.MatchID, in.Seq)
	in.CreatedAt = time.Now()
	r.rows[in.MatchID] = append(r.rows[in.MatchID], *in)
	return nil
}

func (r *mockIntentRepo) ListByMatch(_ context.Context, matchID string) ([]model.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Intent(nil), r.rows[matchID]...), nil
}

func (r *mockIntentRepo) count(matchID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows[matchID])
}

type mockCache struct {
	mu        sync.Mutex
	snapshots map[string]json.RawMessage
	timers    map[string]time.Time
}

func newMockCache() *mockCache {
	return &mockCache{
		snapshots: make(map[string]json.RawMessage),
		timers:    make(map[string]time.Time),
	}
}

func (c *mockCache) SetSnapshot(_ context.Context, matchID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[matchID] = state
	return nil
}

func (c *mockCache) GetSnapshot(_ context.Context, matchID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[matchID], nil
}

func (c *mockCache) SetTimer(_ context.Context, matchID string, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[matchID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, matchID)
	return nil
}

func (c *mockCache) DeleteMatchData(_ context.Context, matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, matchID)
	delete(c.timers, matchID)
	return nil
}

type broadcastRecord struct {
	matchID   string
	eventType string
	data      any
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

func (b *mockBroadcaster) BroadcastMatchEvent(matchID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{matchID, eventType, data})
}

func (b *mockBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
