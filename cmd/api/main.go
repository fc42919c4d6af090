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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/justsurfingit/ats-job-tracker/internal/auth"
	"github.com/justsurfingit/ats-job-tracker/internal/config"
	"github.com/justsurfingit/ats-job-tracker/internal/database"
	"github.com/justsurfingit/ats-job-tracker/internal/handlers"
	"github.com/justsurfingit/ats-job-tracker/internal/middleware"
	"github.com/justsurfingit/ats-job-tracker/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func main() {
	gmailLogin := flag.Bool("gmail-login", false, "run the one-time Gmail OAuth login and exit")
	flag.Parse()

	log := logrus.New()

	// A missing .env is fine, the environment may already be populated.
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	configureLogger(log, cfg)

	if *gmailLogin {
		if err := auth.Login(context.Background(), cfg.GmailCredentialsFile, cfg.GmailTokenFile, os.Stdin, os.Stdout); err != nil {
			log.WithError(err).Fatal("gmail login failed")
		}
		log.Info("gmail token saved")
		return
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	goalService := services.NewGoalService(db, cfg.Location, cfg.DefaultDailyTarget)
	appService := services.NewApplicationService(db, goalService, log)
	statsService := services.NewStatsService(db, cfg.Location)

	llmService, err := services.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.WithError(err).Fatal("language model setup failed")
	}
	if !cfg.AIEnabled() {
		log.Warn("GEMINI_API_KEY not set, AI endpoints will answer 503")
	}

	scheduler := cron.New()
	startMailSync(ctx, cfg, log, scheduler, appService, llmService)
	scheduler.Start()
	defer scheduler.Stop()

	router := handlers.NewRouter(handlers.RouterDeps{
		Applications:   handlers.NewApplicationHandler(appService, log),
		Goals:          handlers.NewGoalHandler(goalService, log),
		Stats:          handlers.NewStatsHandler(statsService, log),
		AI:             handlers.NewAIHandler(llmService, services.NewPageService(), log),
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		Passcode:       cfg.Passcode,
		AILimiter:      middleware.NewRateLimiter(cfg.AIRateLimit, cfg.AIRateBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func configureLogger(log *logrus.Logger, cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

// startMailSync schedules the Gmail status sync when credentials and a
// cached token are available. Any problem only disables the sync.
func startMailSync(ctx context.Context, cfg *config.Config, log *logrus.Logger, c *cron.Cron, apps *services.ApplicationService, llm *services.LLMService) {
	if cfg.GmailCredentialsFile == "" {
		log.Info("GMAIL_CREDENTIALS_FILE not set, mail sync disabled")
		return
	}
	if !cfg.AIEnabled() {
		log.Warn("mail sync needs GEMINI_API_KEY, disabled")
		return
	}

	client, err := auth.GmailClient(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
	if errors.Is(err, auth.ErrNoToken) {
		log.Warn("no gmail token cached, run with -gmail-login first; mail sync disabled")
		return
	}
	if err != nil {
		log.WithError(err).Warn("gmail client unavailable, mail sync disabled")
		return
	}
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		log.WithError(err).Warn("gmail service unavailable, mail sync disabled")
		return
	}

	sync := services.NewEmailService(services.NewGmailSource(gmailService, log), apps, llm, services.NewMatcherService(), log)
	if _, err := sync.Schedule(c, cfg.GmailSyncSchedule); err != nil {
		log.WithError(err).Warn("invalid GMAIL_SYNC_SCHEDULE, mail sync disabled")
		return
	}
	log.WithField("schedule", cfg.GmailSyncSchedule).Info("mail sync scheduled")
}
