package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/version"
	"github.com/rs/zerolog/log"

	alertapi "github.com/qiniu/alertdash/internal/alerting/api"
	adb "github.com/qiniu/alertdash/internal/alerting/database"
	"github.com/qiniu/alertdash/internal/alerting/service/directory"
	"github.com/qiniu/alertdash/internal/alerting/service/history"
	"github.com/qiniu/alertdash/internal/alerting/service/ingest"
	"github.com/qiniu/alertdash/internal/alerting/service/notify"
	"github.com/qiniu/alertdash/internal/alerting/service/ruleset"
	"github.com/qiniu/alertdash/internal/config"
	"github.com/qiniu/alertdash/internal/logging"
	"github.com/qiniu/alertdash/internal/middleware"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version information and exit")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *showVersion {
		fmt.Println(version.Print("alertdash"))
		return
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closer.Close()
	log.Info().Str("version", version.Info()).Str("build", version.BuildContext()).Msg("Starting alertdash api server")
	prometheus.MustRegister(versioncollector.NewCollector("alertdash"))

	db, err := adb.New(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("alerting database init failed")
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("apply schema failed")
		}
	}

	var nameCache directory.Cache = directory.NoopCache{}
	if rdb := directory.NewRedisClientFromConfig(&cfg.Redis); rdb != nil {
		defer rdb.Close()
		nameCache = directory.NewRedisCache(rdb, config.ParseDuration(cfg.Redis.NameCacheTTL, 5*time.Minute))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("metric name cache enabled")
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.NATS.URL != "" {
		pub, err := notify.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Error().Err(err).Msg("nats connect failed; alert notifications disabled")
		} else {
			defer pub.Close()
			notifier = pub
		}
	}

	samples := ingest.NewPgSampleStore(db)
	rules := ruleset.NewPgStore(db)
	names := directory.New(samples, rules, nameCache)
	pipeline := ingest.NewPipeline(ingest.Deps{
		Samples:  samples,
		Rules:    rules,
		Recorder: ingest.NewPgRecorder(db),
		Notifier: notifier,
		Names:    names,
	})

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger())
	alertapi.NewApi(router, alertapi.Deps{
		Ingest: pipeline,
		Rules:  ruleset.NewManager(rules, names),
		Events: history.NewService(history.NewPgStore(db)),
		Names:  names,
		DB:     db,
		Auth: middleware.Chain(
			middleware.HeaderResolver{Header: cfg.Auth.UserHeader},
			middleware.TokenResolver{Tokens: cfg.Auth.Tokens},
		),
		QueryTimeout: config.ParseDuration(cfg.Database.QueryTimeout, 5*time.Second),
	})

	srv := &http.Server{Addr: cfg.Server.BindAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("start alertdash api server failed.")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("alertdash api server exit...")
}
