package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/francoise-ai/francoise/internal/api"
	"github.com/francoise-ai/francoise/internal/bot"
	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/config"
	"github.com/francoise-ai/francoise/internal/db"
	"github.com/francoise-ai/francoise/internal/mail"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database",
			zap.Error(err),
			zap.String("dbPath", cfg.DatabaseURL))
	}
	defer database.Close()

	chatClient := chat.NewClient(cfg.LLMChatURL)
	mailer := mail.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)

	dispatcher := bot.NewDispatcher(logger)
	orch := bot.New(database, chatClient, mailer,
		cfg.MailSender, cfg.ChatTimeout, cfg.MailTimeout, logger)

	handler := api.NewHandler(orch, dispatcher, cfg.EmailSenderWhitelist, logger)

	srv := &http.Server{Addr: cfg.Addr, Handler: api.NewRouter(handler)}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server exited", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	// Dispatched pipelines run to a terminal state even across shutdown.
	dispatcher.Wait()
	logger.Info("all tasks drained")
}
