package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/archipelago/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// MatchRepository defines match and seat data operations.
type MatchRepository interface {
	Create(ctx context.Context, name, creatorID string, numPlayers int, expert bool) (*model.Match, error)
	FindByID(ctx context.Context, id string) (*model.Match, error)
	ListOpen(ctx context.Context) ([]model.Match, error)
	ListByUser(ctx context.Context, userID string) ([]model.Match, error)
	ListActive(ctx context.Context) ([]model.Match, error)
	Join(ctx context.Context, matchID, userID string) error
	PlayerCount(ctx context.Context, matchID string) (int, error)
	Start(ctx context.Context, matchID string, seed int64) error
	SetFinished(ctx context.Context, matchID string, winners []string) error
	Delete(ctx context.Context, matchID string) error
}

// IntentRepository is the append-only journal of accepted intents.
type IntentRepository interface {
	Append(ctx context.Context, in *model.Intent) error
	ListByMatch(ctx context.Context, matchID string) ([]model.Intent, error)
}

// MatchCache holds live match data (Redis).
type MatchCache interface {
	SetSnapshot(ctx context.Context, matchID string, state json.RawMessage) error
	GetSnapshot(ctx context.Context, matchID string) (json.RawMessage, error)
	SetTimer(ctx context.Context, matchID string, deadline time.Time) error
	ClearTimer(ctx context.Context, matchID string) error
	DeleteMatchData(ctx context.Context, matchID string) error
}
