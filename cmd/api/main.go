package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/audit"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/directory"
	server "github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/http_server"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/observability"
	redisad "github.com/samlupson2171/infinityagentsoct-sub018/internal/adapters/redis"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/app"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/domain"
	"github.com/samlupson2171/infinityagentsoct-sub018/internal/shared"
	mysqlrepo "github.com/samlupson2171/infinityagentsoct-sub018/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; catalog reads fall through to MySQL")
	}
	defer cache.Close()
	sink := audit.NewSink(log.Logger)
	actors := buildDirectory(cfg)

	hist := app.NewHistoryService(repo, actors)
	catalog := app.NewCatalogService(repo, cache, hist, sink, cfg.CacheTTL)
	quotes := app.NewQuoteService(repo, repo, hist, sink)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Catalog: catalog, Quotes: quotes, History: hist})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// buildDirectory prefers the directory service; without one it falls back to
// the static table from DIRECTORY_JSON (possibly empty).
func buildDirectory(cfg shared.Config) domain.ActorDirectory {
	if cfg.DirectoryBase != "" {
		cl, err := directory.NewClient(cfg.DirectoryBase, cfg.DirectoryKey, cfg.DirectoryRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("directory client init failed")
		}
		return cl
	}
	st, err := directory.ParseStatic(cfg.DirectoryJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("DIRECTORY_JSON is invalid")
	}
	return st
}
