package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisrepo "github.com/freeeve/archipelago/internal/repository/redis"
)

// TurnTimer is the part of PlayService the listener drives.
type TurnTimer interface {
	ForcePass(ctx context.Context, matchID string) error
	ExpiredMatches(now time.Time) []string
}

// TimerListener forces a pass when a player's turn timer runs out. Expiry is
// picked up from Redis keyspace notifications, with a polling fallback for
// servers that do not publish them.
type TimerListener struct {
	rdb      *redis.Client
	timer    TurnTimer
	interval time.Duration
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *redis.Client, timer TurnTimer) *TimerListener {
	return &TimerListener{rdb: rdb, timer: timer, interval: 10 * time.Second}
}

// Start begins listening for expired key events and blocks running the poller.
func (t *TimerListener) Start(ctx context.Context) {
	go t.listenKeyspace(ctx)
	t.pollExpired(ctx)
}

func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

func (t *TimerListener) pollExpired(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", t.interval).Msg("Turn deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Turn deadline poller stopped")
			return
		case now := <-ticker.C:
			t.checkExpired(ctx, now)
		}
	}
}

func (t *TimerListener) checkExpired(ctx context.Context, now time.Time) {
	ids := t.timer.ExpiredMatches(now)
	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("Poller found expired turns")
	}
	for _, id := range ids {
		t.forcePass(ctx, id, "poller")
	}
}

// handleExpiry acts only on match timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	matchID, ok := redisrepo.MatchIDFromTimerKey(key)
	if !ok {
		return
	}
	t.forcePass(ctx, matchID, "keyspace")
}

func (t *TimerListener) forcePass(ctx context.Context, matchID, source string) {
	log.Info().Str("matchId", matchID).Str("source", source).Msg("Turn timer expired, forcing pass")
	if err := t.timer.ForcePass(ctx, matchID); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Str("source", source).Msg("Forced pass failed")
	}
}
