package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/archipelago/internal/model"
)

const matchColumns = `id, name, creator_id, status, num_players, expert, seed, winners, created_at, started_at, finished_at`

// MatchRepo handles match and match_player database operations.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

func scanMatch(row rowScanner) (*model.Match, error) {
	var m model.Match
	var winners pq.StringArray
	err := row.Scan(&m.ID, &m.Name, &m.CreatorID, &m.Status, &m.NumPlayers, &m.Expert, &m.Seed,
		&winners, &m.CreatedAt, &m.StartedAt, &m.FinishedAt)
	if err != nil {
		return nil, err
	}
	m.Winners = []string(winners)
	return &m, nil
}

// Create inserts a match in waiting status.
func (r *MatchRepo) Create(ctx context.Context, name, creatorID string, numPlayers int, expert bool) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`INSERT INTO matches (name, creator_id, num_players, expert)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+matchColumns,
		name, creatorID, numPlayers, expert,
	))
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	return m, nil
}

// FindByID returns a match with its seats, or nil when it does not exist.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	if m.Players, err = r.ListPlayers(ctx, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MatchRepo) list(ctx context.Context, what string, withPlayers bool, query string, args ...any) ([]model.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s matches: %w", what, err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if withPlayers {
		for i := range matches {
			if matches[i].Players, err = r.ListPlayers(ctx, matches[i].ID); err != nil {
				return nil, err
			}
		}
	}
	return matches, nil
}

// ListOpen returns matches waiting for players, newest first.
func (r *MatchRepo) ListOpen(ctx context.Context) ([]model.Match, error) {
	return r.list(ctx, "open", false,
		`SELECT `+matchColumns+` FROM matches WHERE status = 'waiting' ORDER BY created_at DESC LIMIT 50`)
}

// ListByUser returns the matches a user created or sits in.
func (r *MatchRepo) ListByUser(ctx context.Context, userID string) ([]model.Match, error) {
	return r.list(ctx, "user", false,
		`SELECT `+matchColumns+` FROM matches m
		 WHERE m.creator_id = $1
		    OR EXISTS (SELECT 1 FROM match_players mp WHERE mp.match_id = m.id AND mp.user_id = $1)
		 ORDER BY m.created_at DESC LIMIT 50`, userID)
}

// ListActive returns every running match with its seats.
func (r *MatchRepo) ListActive(ctx context.Context) ([]model.Match, error) {
	return r.list(ctx, "active", true,
		`SELECT `+matchColumns+` FROM matches WHERE status = 'active' ORDER BY created_at`)
}

// ListPlayers returns the seats of a match in seat order.
func (r *MatchRepo) ListPlayers(ctx context.Context, matchID string) ([]model.MatchPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT match_id, user_id, seat, joined_at FROM match_players WHERE match_id = $1 ORDER BY seat`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.MatchPlayer
	for rows.Next() {
		var p model.MatchPlayer
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.Seat, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// Join seats a user at the next free seat. Joining twice is a no-op.
func (r *MatchRepo) Join(ctx context.Context, matchID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Serialize seat assignment per match.
	if _, err := tx.ExecContext(ctx, `SELECT id FROM matches WHERE id = $1 FOR UPDATE`, matchID); err != nil {
		return fmt.Errorf("lock match: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO match_players (match_id, user_id, seat)
		 SELECT $1, $2, COUNT(*) FROM match_players WHERE match_id = $1
		 ON CONFLICT (match_id, user_id) DO NOTHING`,
		matchID, userID,
	)
	if err != nil {
		return fmt.Errorf("join match: %w", err)
	}
	return tx.Commit()
}

// PlayerCount returns the number of seated players.
func (r *MatchRepo) PlayerCount(ctx context.Context, matchID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_players WHERE match_id = $1`, matchID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("player count: %w", err)
	}
	return count, nil
}

// Start records the seed and moves a waiting match to active.
func (r *MatchRepo) Start(ctx context.Context, matchID string, seed int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = 'active', seed = $1, started_at = now()
		 WHERE id = $2 AND status = 'waiting'`,
		seed, matchID,
	)
	if err != nil {
		return fmt.Errorf("start match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("start match %s: not waiting", matchID)
	}
	return nil
}

// SetFinished marks a match finished with its winners (empty for a draw).
func (r *MatchRepo) SetFinished(ctx context.Context, matchID string, winners []string) error {
	if winners == nil {
		winners = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = 'finished', winners = $1, finished_at = now() WHERE id = $2`,
		pq.Array(winners), matchID,
	)
	if err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Delete removes a match; seats and journal rows cascade.
func (r *MatchRepo) Delete(ctx context.Context, matchID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, matchID); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}
