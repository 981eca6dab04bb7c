package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/foodshare-pickups/internal/auth"
	"github.com/nurpe/foodshare-pickups/internal/clock"
	"github.com/nurpe/foodshare-pickups/internal/config"
	"github.com/nurpe/foodshare-pickups/internal/db"
	"github.com/nurpe/foodshare-pickups/internal/excel"
	httphandler "github.com/nurpe/foodshare-pickups/internal/http"
	"github.com/nurpe/foodshare-pickups/internal/http/middleware"
	"github.com/nurpe/foodshare-pickups/internal/ledger"
	"github.com/nurpe/foodshare-pickups/internal/logger"
	"github.com/nurpe/foodshare-pickups/internal/notify"
	"github.com/nurpe/foodshare-pickups/internal/pdf"
	"github.com/nurpe/foodshare-pickups/internal/repository"
	"github.com/nurpe/foodshare-pickups/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	clk := clock.NewSystem()
	lotRepo := repository.NewLotRepository(database)
	pickupRepo := repository.NewPickupRepository(database)
	reportRepo := repository.NewReportRepository(database)
	inventory := ledger.New(lotRepo, clk, log)

	dispatcher := notify.NewDispatcher(newPublisher(cfg, log), cfg.Notify.BufferSize, cfg.Notify.PublishTimeout, log)
	dispatcher.Start()

	pickupService := service.NewPickupService(
		repository.NewTransactor(database),
		pickupRepo,
		lotRepo,
		inventory,
		dispatcher,
		clk,
		cfg,
		log,
	)
	lotService := service.NewLotService(lotRepo, clk)
	reportService := service.NewReportService(reportRepo, pickupRepo, lotRepo, excel.NewGenerator(), pdf.NewGenerator(), clk)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(pickupService, lotService, reportService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Str("sink", cfg.Notify.Sink).Msg("starting pickups service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notification dispatcher did not drain")
	}
	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newPublisher(cfg *config.Config, log zerolog.Logger) notify.Publisher {
	switch cfg.Notify.Sink {
	case config.NotifySinkAMQP:
		return notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue)
	case config.NotifySinkRedis:
		client := notify.NewRedisClient(cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisDB)
		return notify.NewRedisPublisher(client, cfg.Notify.RedisChannel)
	default:
		return notify.NewLogPublisher(log.With().Str("component", "notify").Logger())
	}
}
