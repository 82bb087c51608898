package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ecoregen/config"
	telegram "ecoregen/internal/api"
	"ecoregen/internal/container"
	"ecoregen/internal/domain/entity"
	"ecoregen/internal/domain/port"
	"ecoregen/internal/infrastructure/storage"
	"ecoregen/internal/infrastructure/vision"
	"ecoregen/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.TelegramToken == "" {
		logger.Logger.Fatal("TELEGRAM_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилища
	db, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	taskRepo, err := storage.NewSQLiteTaskRepository(db)
	if err != nil {
		logger.WithError(err).Fatal("failed to create task repository")
	}

	// Модели сегментации
	primary, err := vision.NewOllamaBackend(cfg.OllamaURL, cfg.OllamaModel, cfg.PrimaryTimeout)
	if err != nil {
		logger.WithError(err).Fatal("failed to create primary backend")
	}
	secondary := vision.NewMaskRCNNBackend(cfg.MaskRCNNModel, cfg.MaskRCNNConfig)
	models := vision.NewModelCache(primary, secondary)

	publisher, err := newPublisher(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to create artifact publisher")
	}

	appContainer := container.New(container.Deps{
		Users:      storage.NewMemoryUserRepository(),
		Tasks:      taskRepo,
		Models:     models,
		Publisher:  publisher,
		UploadsDir: cfg.UploadsDir,
		OutputsDir: cfg.OutputsDir,
	})

	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, cfg.Workers)
	if err != nil {
		logger.WithError(err).Fatal("failed to create bot")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.PreloadModels {
		g.Go(func() error {
			// ошибка прогрева не фатальна: модель попробует загрузиться при первом запросе
			if err := models.Warm(gctx, entity.MethodPrimary, entity.MethodSecondary); err != nil {
				logger.WithError(err).Warn("model preload incomplete")
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"workers": cfg.Workers,
			"azure":   cfg.AzureEnabled(),
		}).Info("bot is running")
		return bot.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("bot error")
	}
	logger.Info("bot stopped")
}

func newPublisher(cfg *config.Config) (port.ArtifactPublisher, error) {
	if cfg.AzureEnabled() {
		return storage.NewAzurePublisher(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer, cfg.OutputsDir)
	}
	return storage.NewLocalPublisher(cfg.OutputsDir, cfg.PublicBaseURL), nil
}
