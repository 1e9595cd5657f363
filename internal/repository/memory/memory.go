// Package memory implements the repository interfaces in process memory.
// It backs tests and local bot runs that have no Postgres or Redis.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/repository"
)

var (
	_ repository.UserRepository   = (*UserRepo)(nil)
	_ repository.MatchRepository  = (*MatchRepo)(nil)
	_ repository.IntentRepository = (*IntentRepo)(nil)
	_ repository.MatchCache       = (*Cache)(nil)
)

// ErrSeqConflict mirrors the unique (match, seq) constraint of the journal.
var ErrSeqConflict = errors.New("intent sequence already taken")

// Store holds users, matches, the intent journal and cached match data.
type Store struct {
	mu        sync.Mutex
	users     map[string]*model.User
	matches   map[string]*model.Match
	intents   map[string][]model.Intent
	snapshots map[string]json.RawMessage
	timers    map[string]time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]*model.User),
		matches:   make(map[string]*model.Match),
		intents:   make(map[string][]model.Intent),
		snapshots: make(map[string]json.RawMessage),
		timers:    make(map[string]time.Time),
	}
}

// Users returns the store as a repository.UserRepository.
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Matches returns the store as a repository.MatchRepository.
func (s *Store) Matches() *MatchRepo { return &MatchRepo{s} }

// Intents returns the store as a repository.IntentRepository.
func (s *Store) Intents() *IntentRepo { return &IntentRepo{s} }

// Cache returns the store as a repository.MatchCache.
func (s *Store) Cache() *Cache { return &Cache{s} }

// UserRepo implements repository.UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *UserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.byProvider(provider, providerID); u != nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *UserRepo) byProvider(provider, providerID string) *model.User {
	for _, u := range r.s.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u
		}
	}
	return nil
}

func (r *UserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	u := r.byProvider(provider, providerID)
	if u == nil {
		u = &model.User{ID: uuid.NewString(), Provider: provider, ProviderID: providerID, CreatedAt: now}
		r.s.users[u.ID] = u
	}
	u.DisplayName = displayName
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}
	u.UpdatedAt = now
	c := *u
	return &c, nil
}

func (r *UserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.DisplayName = displayName
	u.UpdatedAt = time.Now()
	return nil
}

// MatchRepo implements repository.MatchRepository.
type MatchRepo struct{ s *Store }

func copyMatch(m *model.Match) model.Match {
	c := *m
	c.Players = slices.Clone(m.Players)
	c.Winners = slices.Clone(m.Winners)
	return c
}

func (r *MatchRepo) Create(_ context.Context, name, creatorID string, numPlayers int, expert bool) (*model.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := &model.Match{
		ID:         uuid.NewString(),
		Name:       name,
		CreatorID:  creatorID,
		Status:     model.MatchWaiting,
		NumPlayers: numPlayers,
		Expert:     expert,
		CreatedAt:  time.Now(),
	}
	r.s.matches[m.ID] = m
	c := copyMatch(m)
	return &c, nil
}

func (r *MatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, nil
	}
	c := copyMatch(m)
	return &c, nil
}

// list returns the matching matches, newest first.
func (r *MatchRepo) list(keep func(*model.Match) bool) []model.Match {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Match
	for _, m := range r.s.matches {
		if keep(m) {
			out = append(out, copyMatch(m))
		}
	}
	slices.SortFunc(out, func(a, b model.Match) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (r *MatchRepo) ListOpen(context.Context) ([]model.Match, error) {
	return r.list(func(m *model.Match) bool { return m.Status == model.MatchWaiting }), nil
}

func (r *MatchRepo) ListByUser(_ context.Context, userID string) ([]model.Match, error) {
	return r.list(func(m *model.Match) bool { return m.HasPlayer(userID) }), nil
}

func (r *MatchRepo) ListActive(context.Context) ([]model.Match, error) {
	return r.list(func(m *model.Match) bool { return m.Status == model.MatchActive }), nil
}

// Join seats a user in the next free seat. Joining twice is a no-op.
func (r *MatchRepo) Join(_ context.Context, matchID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	if m.HasPlayer(userID) {
		return nil
	}
	m.Players = append(m.Players, model.MatchPlayer{
		MatchID:  matchID,
		UserID:   userID,
		Seat:     len(m.Players),
		JoinedAt: time.Now(),
	})
	return nil
}

func (r *MatchRepo) PlayerCount(_ context.Context, matchID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[matchID]
	if !ok {
		return 0, nil
	}
	return len(m.Players), nil
}

func (r *MatchRepo) Start(_ context.Context, matchID string, seed int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[matchID]
	if !ok || m.Status != model.MatchWaiting {
		return fmt.Errorf("match %s is not waiting", matchID)
	}
	now := time.Now()
	m.Status, m.Seed, m.StartedAt = model.MatchActive, seed, &now
	return nil
}

func (r *MatchRepo) SetFinished(_ context.Context, matchID string, winners []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	now := time.Now()
	m.Status, m.Winners, m.FinishedAt = model.MatchFinished, slices.Clone(winners), &now
	return nil
}

// Delete removes a match and its journal.
func (r *MatchRepo) Delete(_ context.Context, matchID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.matches, matchID)
	delete(r.s.intents, matchID)
	return nil
}

// IntentRepo implements repository.IntentRepository.
type IntentRepo struct{ s *Store }

func (r *IntentRepo) Append(_ context.Context, in *model.Intent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.intents[in.MatchID] {
		if row.Seq == in.Seq {
			return ErrSeqConflict
		}
	}
	in.ID = uuid.NewString()
	in.CreatedAt = time.Now()
	r.s.intents[in.MatchID] = append(r.s.intents[in.MatchID], *in)
	return nil
}

func (r *IntentRepo) ListByMatch(_ context.Context, matchID string) ([]model.Intent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := slices.Clone(r.s.intents[matchID])
	slices.SortFunc(rows, func(a, b model.Intent) int { return a.Seq - b.Seq })
	return rows, nil
}

// Cache implements repository.MatchCache. Timers are stored but never fire.
type Cache struct{ s *Store }

func (c *Cache) SetSnapshot(_ context.Context, matchID string, state json.RawMessage) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.snapshots[matchID] = slices.Clone(state)
	return nil
}

func (c *Cache) GetSnapshot(_ context.Context, matchID string) (json.RawMessage, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return slices.Clone(c.s.snapshots[matchID]), nil
}

func (c *Cache) SetTimer(_ context.Context, matchID string, deadline time.Time) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.timers[matchID] = deadline
	return nil
}

func (c *Cache) ClearTimer(_ context.Context, matchID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.timers, matchID)
	return nil
}

func (c *Cache) DeleteMatchData(_ context.Context, matchID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.snapshots, matchID)
	delete(c.s.timers, matchID)
	return nil
}

// Timer returns the stored deadline of a match, if any.
func (c *Cache) Timer(matchID string) (time.Time, bool) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	t, ok := c.s.timers[matchID]
	return t, ok
}
