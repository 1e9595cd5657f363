package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "match:"
	timerSuffix = ":timer"
)

func snapshotKey(matchID string) string { return keyPrefix + matchID + ":snapshot" }
func timerKey(matchID string) string    { return keyPrefix + matchID + timerSuffix }

// MatchIDFromTimerKey extracts the match id from an expired timer key.
func MatchIDFromTimerKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, timerSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), timerSuffix)
	if id == "" || strings.Contains(id, ":") {
		return "", false
	}
	return id, true
}

// Shared codecs; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder = mustEncoder(zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder = mustDecoder()
)

func mustEncoder(opts ...zstd.EOption) *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		panic(fmt.Sprintf("redis: snapshot encoder: %v", err))
	}
	return enc
}

func mustDecoder(opts ...zstd.DOption) *zstd.Decoder {
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		panic(fmt.Sprintf("redis: snapshot decoder: %v", err))
	}
	return dec
}

// turnGracePeriod delays the timer key expiry past the displayed deadline.
const turnGracePeriod = 2 * time.Second

// SetSnapshot stores the zstd-compressed state JSON of a match.
func (c *Client) SetSnapshot(ctx context.Context, matchID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, snapshotKey(matchID), encoder.EncodeAll(state, nil), 0).Err()
}

// GetSnapshot returns the state JSON of a match, or nil when none is cached.
func (c *Client) GetSnapshot(ctx context.Context, matchID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return json.RawMessage(raw), nil
}

// SetTimer creates the turn timer key. Its expiry is published as a keyspace
// event that forces a pass for the acting player.
func (c *Client) SetTimer(ctx context.Context, matchID string, deadline time.Time) error {
	ttl := time.Until(deadline) + turnGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(matchID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the turn timer of a match.
func (c *Client) ClearTimer(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, timerKey(matchID)).Err()
}

// DeleteMatchData removes all Redis data of a match.
func (c *Client) DeleteMatchData(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, snapshotKey(matchID), timerKey(matchID)).Err()
}
