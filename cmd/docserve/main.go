// Document annotation server
// Serves collaborative editing of annotated documents over HTTP
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lingtools/docserve/internal/config"
	"github.com/lingtools/docserve/internal/logger"
	"github.com/lingtools/docserve/internal/server"
	"github.com/lingtools/docserve/pkg/session"
	"github.com/lingtools/docserve/pkg/store"
)

var (
	addr       = flag.String("addr", "", "Listen address")
	workdir    = flag.String("workdir", "", "Document working directory")
	configFile = flag.String("config", "", "Optional YAML configuration file")
	logLevel   = flag.String("loglevel", "", "Log level: debug, info, warn, error")
	logPretty  = flag.Bool("pretty", false, "Pretty-print log output")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
	}
	// flags win over the config file
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *workdir != "" {
		cfg.Workdir = *workdir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logPretty {
		cfg.LogPretty = true
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	log.Info().Str("addr", cfg.Addr).Str("workdir", cfg.Workdir).Msg("starting document server")

	st, err := store.New(cfg.Workdir, cfg.DocExpiry, logger.Component(log, "store"))
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open document store")
	}
	defer st.Close()

	sessions := session.NewTracker(cfg.SessionExpiry)
	srv := server.New(st, sessions, logger.Component(log, "http"))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	// persist whatever is still resident before exiting
	st.Flush()
	log.Info().Msg("document server stopped")
}
