package main

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

	"SpreadSync/internal/api"
	"SpreadSync/internal/app"
	"SpreadSync/internal/config"
	"SpreadSync/internal/scheduler"
	"SpreadSync/internal/utils/logging"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2. logger
	logger := logging.NewLogger(cfg.Log)
	logger.Info("config loaded")

	// 3. database, cache, clients and services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer a.Close()
	logger.Info("database ready")

	// 4. scheduled jobs
	sched := scheduler.New(logger)
	for _, job := range scheduler.Jobs(cfg.Sync, cfg.OddsAPI.Bookmakers, a.Sync, a.Scores, logger) {
		if err := sched.Add(job); err != nil {
			logger.Fatalf("schedule %s: %v", job.Name, err)
		}
	}
	sched.Start()

	// 5. gin
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	pprof.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	logger.Infof("gin mode: %s", cfg.Server.Mode)

	api.RegisterRoutes(r, api.Handlers{
		Sync:   api.NewSyncHandler(ctx, a.Sync, a.Seasons, a.Scores, logger),
		Report: api.NewReportHandler(a.Reports, logger),
		Query:  api.NewQueryHandler(a.Queries, logger),
	}, cfg.OddsAPI.Sport)

	// 6. serve until signalled
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("listening on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	sched.Stop(shutdownCtx)
}
