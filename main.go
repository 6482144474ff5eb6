package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/livepoll/broadcast"
	"github.com/danielhkuo/livepoll/cliparse"
	"github.com/danielhkuo/livepoll/db"
	"github.com/danielhkuo/livepoll/middleware"
	"github.com/danielhkuo/livepoll/router"
	"github.com/danielhkuo/livepoll/store"
)

func main() {
	var err error

	// Optional .env for local development
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect and verify
	dbConn, err := db.Open(cfg)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New(dbConn)
	hub := broadcast.NewHub(broadcast.DefaultBuffer)

	// Updates go straight to local subscribers unless Redis fans them out
	// across instances
	var pub broadcast.Publisher = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("redis ping failed", "error", err)
			os.Exit(1)
		}

		relay := broadcast.NewRedisRelay(client, hub)
		go func() {
			if err := relay.Run(ctx); err != nil {
				slog.Error("redis relay stopped", "error", err)
			}
		}()
		pub = relay
		slog.Info("Live updates relayed through redis")
	}

	dispatcher := broadcast.NewDispatcher(pub, cfg.QueueSize, cfg.PublishTimeout)
	go dispatcher.Run(ctx)

	// Create router
	mux := router.NewRouter(st, hub, dispatcher, cfg)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
		hub.Close()
		cancel()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
