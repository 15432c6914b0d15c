package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/francoise-ai/francoise/internal/bot"
)

type Handler struct {
	orch      *bot.Orchestrator
	disp      *bot.Dispatcher
	whitelist string
	logger    *zap.Logger
}

func NewHandler(orch *bot.Orchestrator, disp *bot.Dispatcher, whitelist string, logger *zap.Logger) *Handler {
	return &Handler{
		orch:      orch,
		disp:      disp,
		whitelist: whitelist,
		logger:    logger,
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/mailgun", h.Mailgun)
	return r
}

// Mailgun accepts one forwarded email and acknowledges immediately; the chat
// and reply work runs after the response, in a dispatched task.
func (h *Handler) Mailgun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sender := r.PostFormValue("sender")

	// Coarse admission only: with a whitelist configured, senders not
	// contained in it are refused before any work is queued.
	if h.whitelist != "" && !strings.Contains(h.whitelist, sender) {
		h.logger.Warn("sender refused by whitelist")
		http.Error(w, "not acceptable", http.StatusNotAcceptable)
		return
	}

	in := bot.Inbound{
		Headers: r.PostFormValue("message-headers"),
		Body:    r.PostFormValue("body-plain"),
		Sender:  sender,
		Subject: r.PostFormValue("subject"),
	}

	h.disp.Dispatch("mailgun-webhook", func(ctx context.Context) error {
		return h.orch.Handle(ctx, in)
	})

	w.WriteHeader(http.StatusOK)
}
