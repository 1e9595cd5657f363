package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/freeeve/archipelago/internal/model"
)

// ErrSeqConflict is returned when another writer already journaled the sequence number.
var ErrSeqConflict = errors.New("intent sequence already taken")

// IntentRepo is the append-only intent journal.
type IntentRepo struct {
	db *sql.DB
}

// NewIntentRepo creates an IntentRepo.
func NewIntentRepo(db *sql.DB) *IntentRepo {
	return &IntentRepo{db: db}
}

// Append journals an intent. The id is generated when empty; CreatedAt is filled in.
func (r *IntentRepo) Append(ctx context.Context, in *model.Intent) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO intents (id, match_id, seq, user_id, kind, payload, forced)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		in.ID, in.MatchID, in.Seq, in.UserID, in.Kind, []byte(in.Payload), in.Forced,
	).Scan(&in.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("append intent %d: %w", in.Seq, ErrSeqConflict)
	}
	if err != nil {
		return fmt.Errorf("append intent: %w", err)
	}
	return nil
}

// ListByMatch returns the journal of a match in sequence order.
func (r *IntentRepo) ListByMatch(ctx context.Context, matchID string) ([]model.Intent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, match_id, seq, user_id, kind, payload, forced, created_at
		 FROM intents WHERE match_id = $1 ORDER BY seq`, matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	var intents []model.Intent
	for rows.Next() {
		var in model.Intent
		var payload []byte
		if err := rows.Scan(&in.ID, &in.MatchID, &in.Seq, &in.UserID, &in.Kind, &payload, &in.Forced, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		in.Payload = payload
		intents = append(intents, in)
	}
	return intents, rows.Err()
}
