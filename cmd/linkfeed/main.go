package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"linkfeed/internal/cache"
	"linkfeed/internal/config"
	"linkfeed/internal/domain"
	"linkfeed/internal/scheduler"
	"linkfeed/internal/server"
	"linkfeed/internal/service"
	"linkfeed/internal/slack"
	"linkfeed/internal/storage"
)

func main() {
	// A missing .env file is not an error; the environment or config
	// file may carry everything.
	_ = godotenv.Load(".env")

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	log.WithFields(logrus.Fields{
		"channel":       cfg.SlackChannelID,
		"badgerdb_path": cfg.BadgerDBPath,
		"cache_path":    cfg.CachePath,
	}).Info("Configuration loaded successfully")

	// Durable store. A failure here degrades the service to
	// non-persistent pass-through instead of aborting.
	var repo storage.Repository
	badgerRepo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.WithError(err).Warn("Durable store unavailable, running in degraded non-persistent mode")
	} else {
		repo = badgerRepo
		defer func() {
			log.Info("Closing database...")
			if err := badgerRepo.Close(); err != nil {
				log.WithError(err).Error("Error closing database")
			}
		}()
	}

	client := slack.NewClient(cfg.SlackBotToken, log)
	channel := domain.Channel{ID: cfg.SlackChannelID, Name: cfg.SlackChannelName}
	scraper := slack.NewScraper(client, channel, log)
	linkCache := cache.New(cfg.CachePath, cfg.MaxCacheEntries, log)

	feedService := service.NewFeedService(scraper, repo, linkCache, log)
	feedService.MaxAgeDays = cfg.MaxAgeDays
	feedService.PageSize = cfg.PageSize
	voteService := service.NewVoteService(repo, log)

	sched := scheduler.New(cfg.SyncSchedule, feedService, log)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	handler := server.NewHandler(feedService, voteService, repo, log)
	router := server.NewRouter(handler, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("port", cfg.ServerPort).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
