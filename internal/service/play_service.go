package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/logger"
	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/protocol"
	"github.com/freeeve/archipelago/internal/repository"
	"github.com/freeeve/archipelago/pkg/archipelago"
	"github.com/freeeve/archipelago/pkg/archipelago/characters"
)

// ErrInvalidIntent wraps payloads that fail schema validation.
var ErrInvalidIntent = errors.New("invalid intent")

// SubmitResult is the outcome of an accepted intent.
type SubmitResult struct {
	Seq     int                 `json:"seq"`
	Events  []archipelago.Event `json:"events"`
	State   archipelago.State   `json:"state"`
	Warning string              `json:"warning,omitempty"`
}

// liveMatch is a running game and its journal position. Guarded by the match lock.
type liveMatch struct {
	game     *archipelago.Game
	players  []string
	seq      int
	turn     string
	deadline time.Time
}

// PlayService runs matches: it applies intents to the live games, journals
// them and keeps the Redis snapshot and turn timer current.
type PlayService struct {
	matchRepo   repository.MatchRepository
	intentRepo  repository.IntentRepository
	cache       repository.MatchCache
	broadcaster Broadcaster
	rules       archipelago.Rules
	effects     []archipelago.Effect
	turnTimeout time.Duration
	now         func() time.Time

	games sync.Map // match id -> *liveMatch

	// matchLocks serializes intents per match in arrival order, so the
	// journal sequence matches the order in which the game applied them.
	matchLocks sync.Map // match id -> *ticketLock
}

// NewPlayService creates a PlayService.
func NewPlayService(
	matchRepo repository.MatchRepository,
	intentRepo repository.IntentRepository,
	cache repository.MatchCache,
	broadcaster Broadcaster,
	rules archipelago.Rules,
	turnTimeout time.Duration,
) *PlayService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &PlayService{
		matchRepo:   matchRepo,
		intentRepo:  intentRepo,
		cache:       cache,
		broadcaster: broadcaster,
		rules:       rules,
		effects:     characters.All(),
		turnTimeout: turnTimeout,
		now:         time.Now,
	}
}

func (s *PlayService) matchLock(matchID string) *ticketLock {
	if v, ok := s.matchLocks.Load(matchID); ok {
		return v.(*ticketLock)
	}
	v, _ := s.matchLocks.LoadOrStore(matchID, newTicketLock())
	return v.(*ticketLock)
}

func (s *PlayService) newGame(m *model.Match) (*archipelago.Game, error) {
	return archipelago.NewGame(archipelago.Config{
		Players: m.PlayerIDs(),
		Seed:    m.Seed,
		Expert:  m.Expert,
		Rules:   s.rules,
		Effects: s.effects,
	})
}

// accepted reports whether an engine error still leaves the intent applied.
func accepted(err error) bool {
	return err == nil || errors.Is(err, archipelago.ErrProfessorTieUnresolved)
}

// StartMatch creates the game of a freshly started match.
func (s *PlayService) StartMatch(ctx context.Context, m *model.Match) error {
	mu := s.matchLock(m.ID)
	mu.Lock()
	defer mu.Unlock()

	game, err := s.newGame(m)
	if err != nil {
		return fmt.Errorf("new game: %w", err)
	}
	lm := &liveMatch{game: game, players: m.PlayerIDs()}
	s.games.Store(m.ID, lm)

	state := game.Snapshot()
	s.storeSnapshot(ctx, m.ID, state)
	s.broadcaster.BroadcastMatchEvent(m.ID, EventMatchStarted, state)
	s.refreshTimer(ctx, m.ID, lm, state)
	return nil
}

// Submit validates, applies and journals one intent of a seated player.
func (s *PlayService) Submit(ctx context.Context, matchID, userID string, raw json.RawMessage) (*SubmitResult, error) {
	in, err := protocol.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}

	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	lm, err := s.live(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(lm.players, userID) {
		return nil, ErrNotInMatch
	}
	return s.apply(ctx, matchID, lm, userID, in, raw, false)
}

// ForcePass plays the pass intent for the acting player once the turn
// deadline has passed. Calls before the deadline are ignored.
func (s *PlayService) ForcePass(ctx context.Context, matchID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	lm, err := s.live(ctx, matchID)
	if errors.Is(err, ErrMatchNotActive) || errors.Is(err, ErrMatchNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.now().Before(lm.deadline) {
		log.Debug().Str("matchId", matchID).Time("deadline", lm.deadline).Msg("Turn deadline not yet reached, skipping")
		return nil
	}

	in := archipelago.Intent{Kind: archipelago.IntentPass}
	raw, err := protocol.Encode(in)
	if err != nil {
		return err
	}
	_, err = s.apply(ctx, matchID, lm, lm.game.CurrentPlayer(), in, raw, true)
	return err
}

func (s *PlayService) apply(ctx context.Context, matchID string, lm *liveMatch, userID string, in archipelago.Intent, raw json.RawMessage, forced bool) (*SubmitResult, error) {
	l := logger.ForMatch(matchID)

	events, err := lm.game.Apply(userID, in)
	if !accepted(err) {
		l.Debug().Err(err).Str("userId", userID).Str("kind", string(in.Kind)).Msg("Intent rejected")
		return nil, err
	}
	res := &SubmitResult{Seq: lm.seq + 1, Events: events}
	if err != nil {
		res.Warning = err.Error()
	}

	row := &model.Intent{
		MatchID: matchID,
		Seq:     res.Seq,
		UserID:  userID,
		Kind:    string(in.Kind),
		Payload: raw,
		Forced:  forced,
	}
	if err := s.intentRepo.Append(ctx, row); err != nil {
		// The game is now ahead of the journal; rebuild it on next use.
		s.games.Delete(matchID)
		return nil, fmt.Errorf("journal intent: %w", err)
	}
	lm.seq = res.Seq

	res.State = lm.game.Snapshot()
	s.storeSnapshot(ctx, matchID, res.State)
	s.broadcaster.BroadcastMatchEvent(matchID, EventIntent, map[string]any{
		"seq":     res.Seq,
		"user_id": userID,
		"kind":    in.Kind,
		"forced":  forced,
		"events":  events,
	})
	l.Info().Int("seq", res.Seq).Str("userId", userID).Str("kind", string(in.Kind)).
		Bool("forced", forced).Int("events", len(events)).Msg("Intent applied")

	if res.State.Phase == archipelago.PhaseEnded {
		s.finish(ctx, matchID, res.State)
	} else {
		s.refreshTimer(ctx, matchID, lm, res.State)
	}
	return res, nil
}

// live returns the running game of a match, rebuilding it from the journal
// when it is not in memory. The caller holds the match lock.
func (s *PlayService) live(ctx context.Context, matchID string) (*liveMatch, error) {
	if v, ok := s.games.Load(matchID); ok {
		return v.(*liveMatch), nil
	}
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if m.Status != model.MatchActive {
		return nil, ErrMatchNotActive
	}
	lm, err := s.rehydrate(ctx, m)
	if err != nil {
		return nil, err
	}
	s.games.Store(matchID, lm)

	state := lm.game.Snapshot()
	s.storeSnapshot(ctx, matchID, state)
	s.refreshTimer(ctx, matchID, lm, state)
	return lm, nil
}

// rehydrate replays the journal against a new game built from the match seed.
func (s *PlayService) rehydrate(ctx context.Context, m *model.Match) (*liveMatch, error) {
	game, err := s.newGame(m)
	if err != nil {
		return nil, fmt.Errorf("new game: %w", err)
	}
	rows, err := s.intentRepo.ListByMatch(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	lm := &liveMatch{game: game, players: m.PlayerIDs()}
	for _, row := range rows {
		in, err := protocol.Decode(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("replay intent %d: %w", row.Seq, err)
		}
		if _, err := game.Apply(row.UserID, in); !accepted(err) {
			return nil, fmt.Errorf("replay intent %d: %w", row.Seq, err)
		}
		lm.seq = row.Seq
	}
	log.Info().Str("matchId", m.ID).Int("intents", len(rows)).Msg("Match rehydrated from journal")
	return lm, nil
}

func turnKey(st archipelago.State) string {
	return fmt.Sprintf("%d:%s:%s", st.Round, st.Phase, st.Current)
}

// refreshTimer starts a new deadline whenever the acting player changes.
func (s *PlayService) refreshTimer(ctx context.Context, matchID string, lm *liveMatch, st archipelago.State) {
	key := turnKey(st)
	if key == lm.turn {
		return
	}
	lm.turn = key
	lm.deadline = s.now().Add(s.turnTimeout)
	if err := s.cache.SetTimer(ctx, matchID, lm.deadline); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to set turn timer")
	}
	s.broadcaster.BroadcastMatchEvent(matchID, EventTurnChanged, map[string]any{
		"round":    st.Round,
		"phase":    st.Phase,
		"current":  st.Current,
		"deadline": lm.deadline,
	})
}

func (s *PlayService) storeSnapshot(ctx context.Context, matchID string, st archipelago.State) {
	raw, err := json.Marshal(st)
	if err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to marshal snapshot")
		return
	}
	if err := s.cache.SetSnapshot(ctx, matchID, raw); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to cache snapshot")
	}
}

func (s *PlayService) finish(ctx context.Context, matchID string, st archipelago.State) {
	winners := st.Winners()
	if err := s.matchRepo.SetFinished(ctx, matchID, winners); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to mark match finished")
	}
	if err := s.cache.DeleteMatchData(ctx, matchID); err != nil {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to delete match cache")
	}
	s.games.Delete(matchID)
	s.broadcaster.BroadcastMatchEvent(matchID, EventMatchEnded, map[string]any{
		"winner":  st.Winner,
		"winners": winners,
	})
	log.Info().Str("matchId", matchID).Str("winner", string(st.Winner)).Int("round", st.Round).Msg("Match finished")
}

// State returns the current state JSON of a started match.
func (s *PlayService) State(ctx context.Context, matchID string) (json.RawMessage, error) {
	if v, ok := s.games.Load(matchID); ok {
		return json.Marshal(v.(*liveMatch).game.Snapshot())
	}
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	switch m.Status {
	case model.MatchActive:
		if raw, err := s.cache.GetSnapshot(ctx, matchID); err == nil && raw != nil {
			return raw, nil
		}
		mu := s.matchLock(matchID)
		mu.Lock()
		defer mu.Unlock()
		lm, err := s.live(ctx, matchID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(lm.game.Snapshot())
	case model.MatchFinished:
		lm, err := s.rehydrate(ctx, m)
		if err != nil {
			return nil, err
		}
		return json.Marshal(lm.game.Snapshot())
	}
	return nil, ErrMatchNotActive
}

// Journal returns the accepted intents of a match in order.
func (s *PlayService) Journal(ctx context.Context, matchID string) ([]model.Intent, error) {
	m, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return s.intentRepo.ListByMatch(ctx, matchID)
}

// ExpiredMatches returns the live matches whose turn deadline has passed.
func (s *PlayService) ExpiredMatches(now time.Time) []string {
	var ids []string
	s.games.Range(func(k, v any) bool {
		id := k.(string)
		mu := s.matchLock(id)
		mu.Lock()
		deadline := v.(*liveMatch).deadline
		mu.Unlock()
		if !deadline.IsZero() && !now.Before(deadline) {
			ids = append(ids, id)
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

// RecoverActiveMatches rebuilds every active match from its journal and
// restores the Redis snapshot and timer. Called on server startup.
func (s *PlayService) RecoverActiveMatches(ctx context.Context) error {
	matches, err := s.matchRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active matches: %w", err)
	}
	if len(matches) == 0 {
		log.Info().Msg("No active matches to recover")
		return nil
	}
	log.Info().Int("count", len(matches)).Msg("Recovering active matches after restart")

	for _, m := range matches {
		mu := s.matchLock(m.ID)
		mu.Lock()
		s.games.Delete(m.ID)
		_, err := s.live(ctx, m.ID)
		mu.Unlock()
		if err != nil {
			log.Error().Err(err).Str("matchId", m.ID).Msg("Failed to recover match")
		}
	}
	return nil
}
