// conversation-starter opens a new, or bumps a dormant, conversation: it
// asks the model for a greeting from the system prompt alone, records it,
// and emails it with the threaded From format the webhook later decodes.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/francoise-ai/francoise/internal/chat"
	"github.com/francoise-ai/francoise/internal/config"
	"github.com/francoise-ai/francoise/internal/db"
	"github.com/francoise-ai/francoise/internal/mail"
	"github.com/francoise-ai/francoise/internal/prompt"
)

const welcomeSubject = "{user_name}, meet {agent_name} ({agent_language} {agent_proficiency})"

func main() {
	_ = godotenv.Load()

	id := flag.Int64("id", 0, "conversation id")
	kind := flag.StringP("type", "t", "welcome", "starter type")
	database := flag.StringP("database", "d", "", "path to the sqlite database (defaults to DATABASE_URL)")
	flag.Parse()

	if *id == 0 {
		fmt.Fprintln(os.Stderr, "conversation-starter: --id is required")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
		os.Exit(1)
	}
	if *database == "" {
		*database = cfg.DatabaseURL
	}

	store, err := db.New(*database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	view, err := store.GetConversationView(ctx, *id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
		os.Exit(1)
	}
	if view == nil {
		fmt.Fprintf(os.Stderr, "conversation-starter: no conversation with id `%d`\n", *id)
		os.Exit(1)
	}

	env := mail.Envelope{
		From: mail.FormatFrom(view.AgentName, view.ID, cfg.MailSender),
		To:   view.UserEmail,
	}

	if *kind == "welcome" {
		system, err := prompt.SystemPrompt(view)
		if err != nil {
			fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
			os.Exit(1)
		}

		chatCtx, cancel := context.WithTimeout(ctx, cfg.ChatTimeout)
		greeting, err := chat.NewClient(cfg.LLMChatURL).Invoke(chatCtx, view.Model,
			[]chat.Message{{Role: chat.RoleSystem, Content: system}})
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
			os.Exit(1)
		}

		if _, err := store.InsertMessage(ctx, view.ID, chat.RoleAssistant, greeting, time.Now().UTC()); err != nil {
			fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
			os.Exit(1)
		}

		subject, err := prompt.Render(welcomeSubject, view)
		if err != nil {
			fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
			os.Exit(1)
		}
		env.Subject = subject
		env.Text = greeting
	}

	mailer := mail.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
	mailCtx, cancel := context.WithTimeout(ctx, cfg.MailTimeout)
	err = mailer.Send(mailCtx, env)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-starter: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("started conversation `%d` with `%s`\n", view.ID, view.UserEmail)
}
