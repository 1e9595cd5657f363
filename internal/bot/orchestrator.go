package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/pkg/archipelago"
)

// eventTimeout bounds the wait for the match_ended event once the state shows the end.
const eventTimeout = 30 * time.Second

// Orchestrator drives a full match between bot clients through the server API.
type Orchestrator struct {
	baseURL  string
	strategy Strategy
	players  int
	expert   bool
	bots     []*Client
	ended    bool // match_ended seen on the watcher connection
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(baseURL string, strategy Strategy, players int, expert bool) *Orchestrator {
	return &Orchestrator{
		baseURL:  baseURL,
		strategy: strategy,
		players:  players,
		expert:   expert,
	}
}

// Run logs the bots in, seats them, starts the match and plays it to the end.
// It returns the final state.
func (o *Orchestrator) Run(ctx context.Context) (archipelago.State, error) {
	log.Info().Str("strategy", o.strategy.Name()).Int("players", o.players).Bool("expert", o.expert).Msg("Starting bot match")

	for i := 1; i <= o.players; i++ {
		name := fmt.Sprintf("Bot%d", i)
		c := NewClient(name, o.baseURL)
		if err := c.Login(); err != nil {
			return archipelago.State{}, fmt.Errorf("login %s: %w", name, err)
		}
		o.bots = append(o.bots, c)
	}

	matchID, err := o.bots[0].CreateMatch("Bot Match", o.players, o.expert)
	if err != nil {
		return archipelago.State{}, fmt.Errorf("create match: %w", err)
	}
	for _, c := range o.bots[1:] {
		if err := c.JoinMatch(matchID); err != nil {
			return archipelago.State{}, fmt.Errorf("join %s: %w", c.Name(), err)
		}
	}

	// Bot1 watches the match so the end event can be confirmed.
	if err := o.bots[0].ConnectWS(); err != nil {
		return archipelago.State{}, err
	}
	defer o.bots[0].CloseWS()
	if err := o.bots[0].SubscribeMatch(matchID); err != nil {
		return archipelago.State{}, fmt.Errorf("ws subscribe: %w", err)
	}

	if err := o.bots[0].StartMatch(matchID); err != nil {
		return archipelago.State{}, fmt.Errorf("start match: %w", err)
	}
	log.Info().Str("matchId", matchID).Msg("Match started")

	final, err := o.playLoop(ctx, matchID)
	if err != nil {
		return final, err
	}
	if !o.ended {
		if _, err := o.waitForEvent(ctx, o.bots[0], "match_ended"); err != nil {
			return final, fmt.Errorf("wait for match end: %w", err)
		}
	}
	log.Info().Str("matchId", matchID).Str("winner", string(final.Winner)).Int("round", final.Round).Msg("Match ended")
	return final, nil
}

// playLoop lets the acting bot submit candidates until one is accepted, then
// moves on to whoever acts next.
func (o *Orchestrator) playLoop(ctx context.Context, matchID string) (archipelago.State, error) {
	st, err := o.bots[0].State(matchID)
	if err != nil {
		return st, fmt.Errorf("get state: %w", err)
	}

	for st.Phase != archipelago.PhaseEnded {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		actor := o.bot(st.Current)
		if actor == nil {
			return st, fmt.Errorf("no bot for player %s", st.Current)
		}

		accepted := false
		for _, in := range o.strategy.Candidates(st) {
			next, err := actor.Submit(matchID, in)
			if errors.Is(err, ErrRejected) {
				continue
			}
			if err != nil {
				return st, fmt.Errorf("%s submit %s: %w", actor.Name(), in.Kind, err)
			}
			st, accepted = next, true
			break
		}
		o.drainEvents(o.bots[0])
		if !accepted {
			return st, fmt.Errorf("%s has no accepted intent in %s", actor.Name(), st.Phase)
		}
	}
	return st, nil
}

func (o *Orchestrator) bot(userID string) *Client {
	for _, c := range o.bots {
		if c.UserID() == userID {
			return c
		}
	}
	return nil
}

// drainEvents consumes the events queued so far, so the watcher connection
// never backs up while the bots play.
func (o *Orchestrator) drainEvents(c *Client) {
	for {
		select {
		case event, ok := <-c.Events():
			if !ok {
				return
			}
			if event.Type == "match_ended" {
				o.ended = true
			}
		default:
			return
		}
	}
}

// waitForEvent blocks until one of the given event types is received or context cancels.
func (o *Orchestrator) waitForEvent(ctx context.Context, c *Client, eventTypes ...string) (WSEvent, error) {
	typeSet := make(map[string]bool)
	for _, t := range eventTypes {
		typeSet[t] = true
	}

	timeout := time.After(eventTimeout)
	for {
		select {
		case <-ctx.Done():
			return WSEvent{}, ctx.Err()
		case <-timeout:
			return WSEvent{}, fmt.Errorf("timeout waiting for events %v", eventTypes)
		case event, ok := <-c.Events():
			if !ok {
				return WSEvent{}, fmt.Errorf("ws connection closed")
			}
			if typeSet[event.Type] {
				return event, nil
			}
			log.Debug().Str("type", event.Type).Msg("Ignoring event")
		}
	}
}
