package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshuakim/propedge/internal/analysis"
	"github.com/joshuakim/propedge/internal/api"
	"github.com/joshuakim/propedge/internal/breaker"
	"github.com/joshuakim/propedge/internal/cache"
	"github.com/joshuakim/propedge/internal/config"
	"github.com/joshuakim/propedge/internal/directory"
	"github.com/joshuakim/propedge/internal/espn"
	"github.com/joshuakim/propedge/internal/logger"
	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/nbastats"
	"github.com/joshuakim/propedge/internal/notifications"
	"github.com/joshuakim/propedge/internal/websocket"
)

const breakerTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	log := logger.Init(cfg.LogLevel, cfg.IsDevelopment())

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	breakers := breaker.NewRegistry([]string{nbastats.Provider, espn.Provider}, breakerTimeout, log)
	stats := nbastats.NewClient(cfg.UpstreamTimeout, cfg.UpstreamDelay, breakers, m, log)
	espnClient := espn.NewClient(cfg.UpstreamTimeout, breakers, m, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The directory is loaded once at startup; the service cannot resolve
	// prop names without it, so failure here is fatal.
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	players, err := stats.ListPlayers(loadCtx, cfg.Season)
	if err != nil {
		cancel()
		log.WithError(err).Fatal("Failed to load player directory")
	}
	teams, err := espnClient.ListTeams(loadCtx)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to load team directory")
	}
	idx := directory.New(players, teams)
	log.WithField("players", idx.PlayerCount()).WithField("teams", idx.TeamCount()).Info("Directory loaded")

	svc := cache.New(stats, espnClient, cfg.Season, cfg.GameLogTTL, m, log)

	hub := websocket.NewHub(m, log, 1000)
	go hub.Run()

	refresher := cache.NewRefresher(svc, cfg.InjuryRefreshInterval, cfg.GamesRefreshInterval, m, log)
	refresher.OnGamesChange(hub.BroadcastGames)
	refresher.Start(ctx)

	subs := notifications.NewSubscriptionStore()
	notifier := notifications.NewService(notifications.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		VAPIDSubject:    cfg.VAPIDSubject,
		BatchInterval:   cfg.NotifyInterval,
		Enabled:         true,
	}, subs, hub, m, log)
	go notifier.Start(ctx)

	engine := analysis.New(idx, svc, cfg.MaxPropsPerBatch, cfg.LockConfidence, cfg.LockMinGames, cfg.GoodConfidence, m, log)

	handler := api.NewHandler(svc, idx, engine, hub, notifier, subs, log)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.CORSMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("PropEdge API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown error")
	}

	refresher.Wait()
	log.Info("Stopped")
}
