package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	gormlogger "gorm.io/gorm/logger"

	"github.com/mathclub/festival-bbs/graph"
	"github.com/mathclub/festival-bbs/internal/auth"
	"github.com/mathclub/festival-bbs/internal/bbs"
	"github.com/mathclub/festival-bbs/internal/config"
	"github.com/mathclub/festival-bbs/internal/dataloader"
	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/httpapi"
	"github.com/mathclub/festival-bbs/internal/httpserver"
	"github.com/mathclub/festival-bbs/internal/logger"
	"github.com/mathclub/festival-bbs/internal/metrics"
	"github.com/mathclub/festival-bbs/internal/realtime"
	"github.com/mathclub/festival-bbs/internal/storage"
	"github.com/mathclub/festival-bbs/internal/storage/inmemory"
	"github.com/mathclub/festival-bbs/internal/storage/postgres"
	"github.com/mathclub/festival-bbs/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		logger.Log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		config.Usage()
	}
	flag.Parse()

	conf, err := config.New(*envFile)
	if err != nil {
		return err
	}
	logger.Initialize(conf.Log.Level, conf.Log.JSON)
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting server", "storage", conf.Storage.Driver)
	backend, err := openBackend(conf)
	if err != nil {
		return err
	}
	store := storage.NewClient(backend,
		storage.WithTimeout(conf.Storage.Timeout),
		storage.WithObserver(metrics.ObserveStoreOp),
	)
	defer store.Close()

	seeds := bbs.DefaultSeeds()
	if conf.BBS.SeedFile != "" {
		if seeds, err = bbs.LoadSeeds(conf.BBS.SeedFile); err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
	}

	observer := realtime.NewObserver()
	repos := bbs.New(store, seeds, observer, log)
	if _, err := repos.Boards.Seed(ctx); err != nil {
		return fmt.Errorf("seed boards: %w", err)
	}
	if conf.BBS.DemoPosts {
		fillWithDemoData(ctx, repos, log)
	}

	gql, err := graph.NewHandler(&graph.Resolver{Repos: repos, DefaultPage: conf.BBS.PageSize, Log: log})
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Handler:        httpapi.NewHandler(repos, conf.BBS.PageSize, log),
		Admin:          auth.New(conf.Admin.JWTSecret),
		GraphQL:        dataloader.Middleware(repos.Boards, gql),
		Live:           realtime.NewHandler(observer, repos.Boards, originChecker(conf.HTTPServer.AllowedOrigins), log),
		AllowedOrigins: conf.HTTPServer.AllowedOrigins,
		RequestTimeout: conf.HTTPServer.WriteTimeout,
		Log:            log,
	})

	if conf.Admin.JWTSecret == "" {
		log.Warn("ADMIN_JWT_SECRET is empty, admin endpoints will reject every request")
	}

	return httpserver.New(conf, router, log).Run(ctx)
}

func openBackend(conf *config.Config) (storage.Backend, error) {
	switch conf.Storage.Driver {
	case "postgres":
		return postgres.New(conf.Storage.DatabaseURL, gormLogLevel(conf.Storage.SQLLogLevel))
	case "sqlite":
		return sqlite.Open(conf.Storage.SQLitePath)
	case "memory":
		return inmemory.New(), nil
	}
	return nil, errors.New("unknown storage driver " + conf.Storage.Driver)
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// originChecker allows websocket upgrades from the configured front-end origins.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin) || slices.Contains(allowed, "*")
	}
}

// fillWithDemoData posts a few messages to boards that have none yet, so a
// fresh local setup has something to page through.
func fillWithDemoData(ctx context.Context, repos *bbs.Repositories, log *slog.Logger) {
	demo := map[string][]domain.NewPost{
		"classroom": {
			{Author: "Ada", Content: "Is the Klein bottle model in room 2 made of glass?"},
			{Author: "", Content: "Yes, and please do not touch it."},
		},
		"puzzles": {
			{Author: "Euler", Content: "Hint for puzzle 3: count the edges twice."},
		},
		"guestbook": {
			{Author: "Visitor", Content: "Loved the tiling exhibit!"},
		},
	}

	for boardID, posts := range demo {
		page, err := repos.Posts.ListPostsPaged(ctx, boardID, 0, 1)
		if err != nil {
			log.Warn("demo data: list posts failed", "board", boardID, "error", err)
			continue
		}
		if page.TotalCount > 0 {
			continue
		}
		for _, p := range posts {
			p.BoardID = boardID
			if _, err := repos.Posts.CreatePost(ctx, p); err != nil {
				log.Warn("demo data: create post failed", "board", boardID, "error", err)
			}
		}
	}
	log.Info("demo data filled")
}
