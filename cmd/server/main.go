package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/nxpat/projets-lfs/internal/config"
	"github.com/nxpat/projets-lfs/internal/db"
	"github.com/nxpat/projets-lfs/internal/notify"
	"github.com/nxpat/projets-lfs/internal/schoolyear"
	"github.com/nxpat/projets-lfs/internal/server"
	"github.com/nxpat/projets-lfs/internal/workflow"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *migrateOnlyFlag {
		if _, err := db.ConnectAndMigrate(); err != nil {
			log.Fatal().Err(err).Msg("migrate-only failed")
		}
		log.Info().Msg("migrations completed; exiting as requested")
		return
	}

	cfg := config.Load()
	dbConn, err := db.ConnectAndMigrate()
	if err != nil {
		log.Fatal().Err(err).Msg("erreur connexion DB")
	}

	resolver := schoolyear.NewResolver(dbConn)
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		resolver.Now = func() time.Time { return time.Now().In(loc) }
	} else {
		log.Warn().Str("timezone", cfg.Timezone).Msg("fuseau horaire inconnu, heure locale utilisée")
	}

	var mailer notify.Mailer
	if cfg.SMTPAddr != "" {
		mailer = &notify.SMTPMailer{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom}
	} else {
		log.Warn().Msg("SMTP non configuré, notifications en console")
		mailer = &notify.ConsoleMailer{Log: log}
	}
	dispatcher := &notify.Dispatcher{DB: dbConn, Mailer: mailer, AppWebsite: cfg.Website}
	queue := notify.NewQueue(dbConn)
	svc := workflow.NewService(dbConn, resolver, queue)

	handler := server.New(server.Deps{
		DB:         dbConn,
		SY:         resolver,
		Workflow:   svc,
		Queue:      queue,
		Dispatcher: dispatcher,
		Log:        log,
	})

	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting server")
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}
