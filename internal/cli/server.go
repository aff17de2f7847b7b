package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/game"
	"trivia-session-service/internal/infra/memory"
	pgloader "trivia-session-service/internal/infra/postgres"
	redissession "trivia-session-service/internal/infra/redis"
	transport "trivia-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// bankSource resolves the question bank the session plays, regardless of
// which cache layer backs it.
type bankSource interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		log.Printf("config %s not found, using defaults", configPath)
		cfg = config.Config{}
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(defaultBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks bankSource
	if redisClient != nil {
		banks = redissession.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	bankID := cfg.Bank.ID
	if bankID == "" {
		bankID = "default"
	}
	bank, err := banks.GetBank(ctx, bankID)
	if err != nil {
		return err
	}
	if bank.Count() == 0 {
		return fmt.Errorf("bank %s: %w", bankID, domain.ErrNoQuestions)
	}

	session := game.NewSession(bank, game.Rules{
		ReadingSeconds:   cfg.Game.Reading,
		AnsweringSeconds: cfg.Game.Answering,
		RevealSeconds:    cfg.Game.Reveal,
	})

	if redisClient != nil {
		mirrorCtx, stopMirror := context.WithCancel(ctx)
		defer stopMirror()
		mirror := redissession.NewSessionMirror(redisClient, redisTTL)
		go mirror.Run(mirrorCtx, bankID, session)
	}

	wsHandler := transport.NewWSHandler(session)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// defaultBanks provides a compiled-in question bank; configure postgres to serve curated banks instead.
func defaultBanks() map[string]domain.Bank {
	return map[string]domain.Bank{
		"default": {
			ID: "default",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "Which planet is known as the Red Planet?",
					Options:      []string{"Venus", "Mars", "Jupiter", "Mercury"},
					CorrectIndex: 1,
				},
				{
					ID:           "q2",
					Prompt:       "What is the capital of Australia?",
					Options:      []string{"Sydney", "Melbourne", "Canberra", "Perth"},
					CorrectIndex: 2,
				},
				{
					ID:           "q3",
					Prompt:       "How many continents are there?",
					Options:      []string{"Five", "Six", "Seven", "Eight"},
					CorrectIndex: 2,
				},
				{
					ID:           "q4",
					Prompt:       "Which element has the chemical symbol O?",
					Options:      []string{"Gold", "Oxygen", "Osmium", "Iron"},
					CorrectIndex: 1,
				},
				{
					ID:           "q5",
					Prompt:       "What is the largest ocean on Earth?",
					Options:      []string{"Atlantic", "Indian", "Arctic", "Pacific"},
					CorrectIndex: 3,
				},
				{
					ID:           "q6",
					Prompt:       "In which year did the first crewed moon landing take place?",
					Options:      []string{"1965", "1969", "1972", "1958"},
					CorrectIndex: 1,
				},
				{
					ID:           "q7",
					Prompt:       "Which language has the most native speakers?",
					Options:      []string{"English", "Hindi", "Mandarin Chinese", "Spanish"},
					CorrectIndex: 2,
				},
				{
					ID:           "q8",
					Prompt:       "What is the tallest mountain above sea level?",
					Options:      []string{"K2", "Mount Everest", "Kangchenjunga", "Denali"},
					CorrectIndex: 1,
				},
			},
		},
	}
}
