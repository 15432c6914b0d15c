// conversation-prompt prints the fully expanded system prompt for a
// conversation, for checking an agent template against real data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/francoise-ai/francoise/internal/db"
	"github.com/francoise-ai/francoise/internal/prompt"
)

func main() {
	_ = godotenv.Load()

	id := flag.Int64("id", 0, "conversation id")
	database := flag.StringP("database", "d", defaultDatabase(), "path to the sqlite database")
	flag.Parse()

	if *id == 0 {
		fmt.Fprintln(os.Stderr, "conversation-prompt: --id is required")
		os.Exit(2)
	}

	store, err := db.New(*database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-prompt: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	view, err := store.GetConversationView(context.Background(), *id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-prompt: %v\n", err)
		os.Exit(1)
	}
	if view == nil {
		fmt.Fprintf(os.Stderr, "conversation-prompt: no conversation with id `%d`\n", *id)
		os.Exit(1)
	}

	system, err := prompt.SystemPrompt(view)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-prompt: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(system)
}

func defaultDatabase() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "data.db"
}
