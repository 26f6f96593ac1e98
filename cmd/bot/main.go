package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/bot"
	"github.com/xaenox/globalsync/internal/extractor"
	"github.com/xaenox/globalsync/internal/focus"
	"github.com/xaenox/globalsync/internal/holiday"
	"github.com/xaenox/globalsync/internal/reminder"
	"github.com/xaenox/globalsync/internal/scheduling"
	"github.com/xaenox/globalsync/internal/storage"
	"github.com/xaenox/globalsync/pkg/config"
	"github.com/xaenox/globalsync/pkg/logging"
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	bootLogger, _ := zap.NewProduction()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Holiday cache: in-process, backed by Redis when configured
	var yearCache holiday.YearCache = holiday.NewLocalYearCache(cfg.Holidays.CacheTTL, cfg.Holidays.CacheTTL/2)
	if cfg.Holidays.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Holidays.Redis.URL)
		if err != nil {
			logger.Fatal("Invalid Redis URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, using in-process holiday cache only", zap.Error(err))
		} else {
			logger.Info("Using Redis holiday cache")
			yearCache = holiday.NewTieredYearCache(
				holiday.NewLocalYearCache(cfg.Holidays.CacheTTL, cfg.Holidays.CacheTTL/2),
				holiday.NewRedisYearCache(rdb, cfg.Holidays.Redis.KeyPrefix, cfg.Holidays.CacheTTL),
			)
		}
	}

	holidays := holiday.NewClient(holiday.Config{
		BaseURL:         cfg.Holidays.BaseURL,
		Timeout:         cfg.Holidays.Timeout,
		MaxFailures:     cfg.Holidays.MaxFailures,
		BreakerCooldown: cfg.Holidays.BreakerCooldown,
	}, yearCache, logger)

	// Preference extraction falls back to keyword rules without an API key
	var ext extractor.Extractor
	if cfg.OpenAI.APIKey != "" {
		ext = extractor.NewGPTExtractor(extractor.GPTConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			MaxRetries:  cfg.OpenAI.MaxRetries,
		}, logger)
	} else {
		logger.Warn("OPENAI_API_KEY not set, using keyword preference extraction")
		ext = extractor.NewKeywordExtractor()
	}

	workHours := cfg.Scheduling.WorkHours()
	recommender := scheduling.NewRecommender(holidays, scheduling.Options{
		HorizonDays:   cfg.Scheduling.HorizonDays,
		MinBuffer:     cfg.Scheduling.MinBuffer,
		CustomerHours: workHours,
		SenderHours:   workHours,
		Weights:       cfg.Scheduling.Weights,
	}, logger)

	api, err := bot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	reminders := reminder.NewScheduler(logger)
	defer reminders.Stop()

	manager := focus.NewManager(store, recommender, ext, reminders,
		bot.NewTelegramNotifier(api, store, logger),
		focus.Options{DefaultTimezone: cfg.Scheduling.DefaultTimezone},
		logger)

	if _, _, err := manager.Reconcile(ctx); err != nil {
		logger.Error("Failed to reconcile reminders", zap.Error(err))
	}

	b := bot.New(api, store, manager, holidays, bot.Defaults{
		Timezone:  cfg.Scheduling.DefaultTimezone,
		WorkHours: workHours,
	}, logger)

	logger.Info("Bot started", zap.String("username", api.Self.UserName))
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}
