package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/api"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/handlers"
	"github.com/tg-chatstat-go/internal/i18n"
	"github.com/tg-chatstat-go/internal/middleware"
	"github.com/tg-chatstat-go/internal/services/ai"
	"github.com/tg-chatstat-go/internal/services/cache"
	"github.com/tg-chatstat-go/internal/services/session"
	"github.com/tg-chatstat-go/internal/services/stats"
	"github.com/tg-chatstat-go/internal/services/storage"
	"github.com/tg-chatstat-go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// running without a .env file is normal in containers
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting chat statistics bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}
	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	cacheService, err := cache.NewService(&cfg.Cache, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	sessions := session.NewStore(cfg.Session.TTL, log)

	metrics := middleware.NewMetrics()
	engine := stats.NewEngine(db.Stats(), cacheService, metrics, log)

	var analyzer ai.Service
	if cfg.AI.Enabled {
		analyzer = ai.NewClient(&cfg.AI, log)
		log.WithField("model", cfg.AI.Model).Info("Analysis client ready")
	}

	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, metrics, log)

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}
	renderer := handlers.NewRenderer(localizer, cfg.I18n.DefaultLanguage)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	if cfg.API.Enabled {
		apiServer := api.NewServer(&cfg.API, db.Users(), db.Messages(), analyzer, cfg.AI.AnalyzeMessages, metrics, log)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				log.WithError(err).Error("API server failed")
			}
		}()
	}

	commandHandler := handlers.NewCommandHandler(
		bot, cfg, engine, sessions, db.Users(), db.Messages(),
		analyzer, rateLimiter, renderer, metrics, log,
	)
	messageHandler := handlers.NewMessageHandler(
		bot, cfg, engine, sessions, db.Users(), db.Chats(), db.Messages(),
		renderer, metrics, log,
	)
	callbackHandler := handlers.NewCallbackHandler(
		bot, cfg, engine, sessions, renderer, metrics, log,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.UpdateTimeout
	updates := bot.GetUpdatesChan(u)
	log.Info("Using long polling")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for update := range updates {
			if update.CallbackQuery != nil {
				metrics.RecordUpdateReceived("callback")
				if err := callbackHandler.HandleCallback(ctx, update.CallbackQuery); err != nil {
					log.WithError(err).Error("Failed to handle callback query")
				}
				continue
			}

			if update.Message == nil {
				continue
			}

			if update.Message.IsCommand() {
				metrics.RecordUpdateReceived("command")
				if err := commandHandler.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
				}
				continue
			}

			metrics.RecordUpdateReceived("message")
			if err := messageHandler.HandleMessage(ctx, update.Message); err != nil {
				log.WithError(err).Error("Failed to handle message")
			}
		}
	}()

	go trackSessions(ctx, sessions, metrics)

	<-sigChan
	log.Info("Shutdown signal received")

	bot.StopReceivingUpdates()
	cancel()

	// give in-flight handlers time to finish
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}

// trackSessions keeps the active-sessions gauge honest after TTL
// expirations, which remove entries without going through a handler.
func trackSessions(ctx context.Context, sessions *session.Store, metrics *middleware.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetActiveSessions(float64(sessions.Count()))
		}
	}
}
