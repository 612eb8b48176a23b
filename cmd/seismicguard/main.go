package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seismicguard/seismicguard/internal/api"
	"github.com/seismicguard/seismicguard/internal/assist"
	"github.com/seismicguard/seismicguard/internal/config"
	"github.com/seismicguard/seismicguard/internal/domain"
	"github.com/seismicguard/seismicguard/internal/lookup/wiki"
	"github.com/seismicguard/seismicguard/internal/notify"
	"github.com/seismicguard/seismicguard/internal/observability"
	"github.com/seismicguard/seismicguard/internal/session"
	"github.com/seismicguard/seismicguard/internal/source/fileimport"
	"github.com/seismicguard/seismicguard/internal/source/usgs"
	"github.com/seismicguard/seismicguard/internal/userstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, err := userstore.Open(ctx, cfg.UserDBDriver, cfg.UserDBDSN, cfg.AdminUser, cfg.AdminPass, logger)
	if err != nil {
		logger.Error("failed to open user store", "error", err)
		os.Exit(1)
	}
	defer users.Close()

	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL, cfg.AlertThreshold)
	feed := usgs.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger, metrics)
	importer := fileimport.NewProvider(logger, metrics)

	// Knowledge base: built-in defaults, optionally overridden from YAML
	// and hot-reloaded on changes.
	knowledge := assist.NewKnowledge()
	if cfg.KnowledgeConfig != "" {
		if err := knowledge.LoadFile(cfg.KnowledgeConfig); err != nil {
			logger.Error("failed to load knowledge config", "path", cfg.KnowledgeConfig, "error", err)
			os.Exit(1)
		}
		stopWatch, err := knowledge.Watch(cfg.KnowledgeConfig, logger)
		if err != nil {
			logger.Warn("knowledge config watch unavailable", "error", err)
		} else {
			defer stopWatch()
		}
		logger.Info("knowledge config loaded", "path", cfg.KnowledgeConfig, "entries", knowledge.Len())
	}

	lookupClient := wiki.NewClient(cfg.LookupTimeout, logger, metrics)
	lookup := wiki.NewCachedLookup(lookupClient, cfg.LookupCacheSize, metrics)
	responder := domain.NewResponder(knowledge, lookup)

	// Notification channels are feature-flagged via SMTP_* and KAFKA_*.
	var channels []notify.Channel
	if cfg.SMTPEnabled {
		channels = append(channels, notify.NewEmailChannel(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.DashboardURL, nil))
		logger.Info("email notifications enabled", "host", cfg.SMTPHost)
	} else {
		logger.Info("email notifications disabled")
	}
	var kafkaChannel *notify.KafkaChannel
	if cfg.KafkaEnabled {
		kafkaChannel = notify.NewKafkaChannel(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, logger)
		channels = append(channels, kafkaChannel)
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaNotifyTopic)
	} else {
		logger.Info("kafka notifications disabled")
	}
	dispatcher := notify.NewDispatcher(logger, metrics, channels...)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	srv := api.NewServer(cfg.HTTPAddr, logger, metrics, users, sessions, feed, importer, responder, dispatcher, rng)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaChannel != nil {
		if err := kafkaChannel.Close(); err != nil {
			logger.Error("kafka channel close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
