// conversation-add creates a conversation for an existing user and agent.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/francoise-ai/francoise/internal/db"
)

func main() {
	_ = godotenv.Load()

	user := flag.Int64P("user", "u", 0, "user id")
	agent := flag.Int64P("agent", "a", 0, "agent id")
	proficiency := flag.StringP("proficiency", "p", "", "proficiency level for the conversation")
	model := flag.StringP("model", "m", "gemma3", "model for the conversation")
	database := flag.StringP("database", "d", defaultDatabase(), "path to the sqlite database")
	flag.Parse()

	if *user == 0 || *agent == 0 || *proficiency == "" {
		fmt.Fprintln(os.Stderr, "conversation-add: --user, --agent and --proficiency are required")
		os.Exit(2)
	}

	store, err := db.New(*database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-add: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	conv, err := store.CreateConversation(context.Background(), *user, *agent, *model, *proficiency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conversation-add: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created conversation with id `%d`\n", conv.ID)
}

func defaultDatabase() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "data.db"
}
