package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/repository"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchNotWaiting = errors.New("match is not in waiting status")
	ErrMatchFull       = errors.New("match is full")
	ErrNotEnough       = errors.New("every seat must be taken to start")
	ErrNotCreator      = errors.New("only the creator can do that")
	ErrMatchNotActive  = errors.New("match is not active")
	ErrAlreadyJoined   = errors.New("already joined this match")
	ErrNotInMatch      = errors.New("you are not in this match")
	ErrPlayerCount     = errors.New("a match takes 2 to 4 players")
	ErrNameRequired    = errors.New("match name is required")
)

// MatchStarter brings a freshly started match to life.
type MatchStarter interface {
	StartMatch(ctx context.Context, m *model.Match) error
}

// MatchService handles the lobby: creating, joining, starting and deleting matches.
type MatchService struct {
	matchRepo   repository.MatchRepository
	starter     MatchStarter
	broadcaster Broadcaster
	seed        func() int64
}

// NewMatchService creates a MatchService.
func NewMatchService(matchRepo repository.MatchRepository, starter MatchStarter, broadcaster Broadcaster) *MatchService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &MatchService{
		matchRepo:   matchRepo,
		starter:     starter,
		broadcaster: broadcaster,
		seed:        rand.Int63,
	}
}

// CreateMatch creates a match in waiting status and seats the creator.
func (s *MatchService) CreateMatch(ctx context.Context, name, creatorID string, numPlayers int, expert bool) (*model.Match, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if numPlayers < 2 || numPlayers > 4 {
		return nil, ErrPlayerCount
	}
	m, err := s.matchRepo.Create(ctx, name, creatorID, numPlayers, expert)
	if err != nil {
		return nil, err
	}
	if err := s.matchRepo.Join(ctx, m.ID, creatorID); err != nil {
		return nil, err
	}
	log.Info().Str("matchId", m.ID).Int("players", numPlayers).Bool("expert", expert).Msg("Match created")
	return s.matchRepo.FindByID(ctx, m.ID)
}

// JoinMatch seats a user in a waiting match.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, userID string) error {
	m, err := s.waiting(ctx, matchID)
	if err != nil {
		return err
	}
	if m.HasPlayer(userID) {
		return ErrAlreadyJoined
	}
	if len(m.Players) >= m.NumPlayers {
		return ErrMatchFull
	}
	if err := s.matchRepo.Join(ctx, matchID, userID); err != nil {
		return err
	}
	s.broadcaster.BroadcastMatchEvent(matchID, EventLobby, map[string]any{
		"user_id": userID,
		"players": len(m.Players) + 1,
	})
	return nil
}

// StartMatch seeds and starts a full match. Only the creator may start it.
func (s *MatchService) StartMatch(ctx context.Context, matchID, userID string) (*model.Match, error) {
	m, err := s.waiting(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.CreatorID != userID {
		return nil, ErrNotCreator
	}
	count, err := s.matchRepo.PlayerCount(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if count != m.NumPlayers {
		return nil, ErrNotEnough
	}

	if err := s.matchRepo.Start(ctx, matchID, s.seed()); err != nil {
		return nil, err
	}
	started, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.starter.StartMatch(ctx, started); err != nil {
		return nil, err
	}
	log.Info().Str("matchId", matchID).Int64("seed", started.Seed).Msg("Match started")
	return started, nil
}

// GetMatch returns a match with its seats.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// ListMatches returns open matches, or the user's own with filter "mine".
func (s *MatchService) ListMatches(ctx context.Context, userID, filter string) ([]model.Match, error) {
	if filter == "mine" {
		return s.matchRepo.ListByUser(ctx, userID)
	}
	return s.matchRepo.ListOpen(ctx)
}

// DeleteMatch removes a waiting match. Only the creator may delete it.
func (s *MatchService) DeleteMatch(ctx context.Context, matchID, userID string) error {
	m, err := s.waiting(ctx, matchID)
	if err != nil {
		return err
	}
	if m.CreatorID != userID {
		return ErrNotCreator
	}
	return s.matchRepo.Delete(ctx, matchID)
}

func (s *MatchService) waiting(ctx context.Context, matchID string) (*model.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MatchWaiting {
		return nil, ErrMatchNotWaiting
	}
	return m, nil
}
