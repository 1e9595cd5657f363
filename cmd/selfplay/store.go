package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/protocol"
	"github.com/freeeve/archipelago/internal/repository"
	"github.com/freeeve/archipelago/internal/repository/postgres"
)

// journalStore writes finished self-play matches in the server's journal
// format, so the server can replay them. A nil store keeps everything in memory.
type journalStore struct {
	users   repository.UserRepository
	matches repository.MatchRepository
	intents repository.IntentRepository
}

func newJournalStore(db *sql.DB) *journalStore {
	return &journalStore{
		users:   postgres.NewUserRepo(db),
		matches: postgres.NewMatchRepo(db),
		intents: postgres.NewIntentRepo(db),
	}
}

// seats returns the player ids for a match: stable bot users when saving,
// plain seat names otherwise.
func (s *journalStore) seats(ctx context.Context, n int) ([]string, error) {
	ids := make([]string, n)
	for i := range n {
		name := fmt.Sprintf("selfplay-%d", i)
		if s == nil {
			ids[i] = name
			continue
		}
		u, err := s.users.Upsert(ctx, "selfplay", name, name, "")
		if err != nil {
			return nil, fmt.Errorf("upsert %s: %w", name, err)
		}
		ids[i] = u.ID
	}
	return ids, nil
}

func (s *journalStore) save(ctx context.Context, name string, res *matchResult) error {
	if s == nil {
		return nil
	}
	players := res.final.Players
	m, err := s.matches.Create(ctx, name, players[0].ID, len(players), res.Expert)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	for _, p := range players {
		if err := s.matches.Join(ctx, m.ID, p.ID); err != nil {
			return fmt.Errorf("join %s: %w", p.ID, err)
		}
	}
	if err := s.matches.Start(ctx, m.ID, res.Seed); err != nil {
		return fmt.Errorf("start match: %w", err)
	}
	for i, mv := range res.journal {
		payload, err := protocol.Encode(mv.intent)
		if err != nil {
			return fmt.Errorf("encode intent %d: %w", i+1, err)
		}
		row := &model.Intent{
			MatchID: m.ID,
			Seq:     i + 1,
			UserID:  mv.player,
			Kind:    string(mv.intent.Kind),
			Payload: payload,
		}
		if err := s.intents.Append(ctx, row); err != nil {
			return fmt.Errorf("append intent %d: %w", i+1, err)
		}
	}
	return s.matches.SetFinished(ctx, m.ID, res.Winners)
}
