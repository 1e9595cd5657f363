// Command bot plays a full match through the server API with bot clients.
// With -local it serves its own in-memory stack instead of dialing -url.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/bot"
	"github.com/freeeve/archipelago/internal/handler"
	"github.com/freeeve/archipelago/internal/repository/memory"
	"github.com/freeeve/archipelago/internal/service"
	"github.com/freeeve/archipelago/pkg/archipelago"
)

func main() {
	url := flag.String("url", "http://localhost:8009", "server base URL")
	local := flag.Bool("local", false, "run against an in-process in-memory server")
	strategyName := flag.String("strategy", "random", "bot strategy (pass, random)")
	players := flag.Int("players", 2, "number of bots (2-4)")
	expert := flag.Bool("expert", false, "play with coins and characters")
	seed := flag.Int64("seed", time.Now().UnixNano(), "strategy seed")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	baseURL := *url
	if *local {
		addr, stop, err := serveLocal()
		if err != nil {
			log.Fatal().Err(err).Msg("Local server failed")
		}
		defer stop()
		baseURL = "http://" + addr
	}

	strategy := bot.StrategyByName(*strategyName, *seed)
	orch := bot.NewOrchestrator(baseURL, strategy, *players, *expert)
	final, err := orch.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Bot orchestrator failed")
	}
	log.Info().
		Int("rounds", final.Round).
		Str("winner", string(final.Winner)).
		Strs("winners", final.Winners()).
		Msg("Bot match completed")
}

// serveLocal starts the HTTP stack on the in-memory store on a free port.
func serveLocal() (string, func(), error) {
	store := memory.NewStore()
	hub := handler.NewHub()
	play := service.NewPlayService(store.Matches(), store.Intents(), store.Cache(), hub, archipelago.DefaultRules(), time.Hour)
	matches := service.NewMatchService(store.Matches(), play, hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: handler.NewRouter(handler.RouterConfig{
		JWT:       auth.NewJWTManager("bot-local"),
		Users:     store.Users(),
		MatchRepo: store.Matches(),
		Matches:   matches,
		Play:      play,
		Hub:       hub,
		DevLogin:  true,
	})}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Local server error")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Local server listening")
	return ln.Addr().String(), func() { srv.Close() }, nil
}
