// Package config collects every process-wide setting into one struct built
// at startup, so nothing downstream reads the environment directly.
package config

import (
	"errors"
	"os"
	"time"

	"go.uber.org/multierr"
)

type Config struct {
	Addr        string
	DatabaseURL string

	LLMChatURL string

	MailgunAPIKey  string
	MailgunDomain  string
	MailgunAPIBase string // optional override, e.g. the EU region
	MailSender     string // address replies are sent from

	// EmailSenderWhitelist, when non-empty, admits a webhook delivery only if
	// the sender address is contained in this string. Containment, not
	// membership: a comma-separated list works, and so does a single address.
	EmailSenderWhitelist string

	ChatTimeout time.Duration
	MailTimeout time.Duration
}

// Load reads configuration from environment variables. Callers that want
// .env support run godotenv.Load first.
func Load() *Config {
	return &Config{
		Addr:                 getEnv("ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", "data.db"),
		LLMChatURL:           getEnv("LLM_API_CHAT_URL", "http://localhost:11434/api/chat"),
		MailgunAPIKey:        os.Getenv("MAILGUN_API_KEY"),
		MailgunDomain:        os.Getenv("MAILGUN_DOMAIN"),
		MailgunAPIBase:       os.Getenv("MAILGUN_API_BASE"),
		MailSender:           os.Getenv("MAILGUN_API_SENDER"),
		EmailSenderWhitelist: os.Getenv("EMAIL_SENDER_WHITELIST"),
		ChatTimeout:          getDuration("CHAT_TIMEOUT", 60*time.Second),
		MailTimeout:          getDuration("MAIL_TIMEOUT", 30*time.Second),
	}
}

// Validate reports every value missing for serving webhooks, not just the
// first one found.
func (c *Config) Validate() error {
	var err error
	if c.MailgunAPIKey == "" {
		err = multierr.Append(err, errors.New("MAILGUN_API_KEY is required"))
	}
	if c.MailgunDomain == "" {
		err = multierr.Append(err, errors.New("MAILGUN_DOMAIN is required"))
	}
	if c.MailSender == "" {
		err = multierr.Append(err, errors.New("MAILGUN_API_SENDER is required"))
	}
	return err
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
