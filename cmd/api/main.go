package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clearbill.io/internal/analytics"
	"clearbill.io/internal/claims"
	"clearbill.io/internal/config"
	"clearbill.io/internal/directory"
	"clearbill.io/internal/files"
	"clearbill.io/internal/httpapi"
	"clearbill.io/internal/ledger"
	"clearbill.io/internal/notes"
	"clearbill.io/internal/obs"
	"clearbill.io/internal/portal"
	"clearbill.io/internal/providers"
	"clearbill.io/internal/store"
	"clearbill.io/internal/tracking"
)

var version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}
	obs.SetLevel(cfg.LogLevel)
	obs.Init(version)
	log := obs.Logger()

	// A timestamped copy of the store file is taken before any schema work
	// touches it.
	if backup, err := store.BackupBefore(cfg.StorePath, cfg.BackupRetention); err != nil {
		log.Fatal().Err(err).Msg("backup store")
	} else if backup != "" {
		log.Info().Str("backup", backup).Msg("store backed up")
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	if err := store.Migrate(bootCtx, db); err != nil {
		log.Fatal().Err(err).Msg("migrate store")
	}

	claimRepo := claims.NewRepo(db)
	if n, err := claimRepo.NormalizeStatuses(bootCtx); err != nil {
		log.Fatal().Err(err).Msg("normalize claim statuses")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("normalized legacy claim statuses")
	}

	if cfg.SeedOnEmpty {
		if err := store.SeedDemo(bootCtx, db); err != nil {
			log.Fatal().Err(err).Msg("seed store")
		}
	}

	dir := directory.NewService(db, directory.WithSessionTTL(cfg.SessionTTL))
	svc := portal.New(
		dir,
		claimRepo,
		ledger.New(db),
		notes.New(db),
		providers.New(db),
		tracking.NewCredentialing(db),
		tracking.NewEnrollment(db),
		tracking.NewEDI(db),
		files.New(db),
		analytics.New(db),
	)

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version, httpapi.Options{
		RateLimitRPS: cfg.RateLimitRPS,
		RateBurst:    cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting clearbill-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("stopped")
}
