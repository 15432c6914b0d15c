// agent-add inserts an agent persona, reading its prompt template from a
// file so long prompts stay out of shell history.
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

	name := flag.StringP("name", "n", "", "agent name")
	language := flag.String("language", "", "target language")
	proficiency := flag.String("proficiency", "", "default proficiency level")
	promptPath := flag.StringP("prompt", "p", "./prompt.md", "path to the prompt template")
	database := flag.StringP("database", "d", defaultDatabase(), "path to the sqlite database")
	flag.Parse()

	if *name == "" || *language == "" || *proficiency == "" {
		fmt.Fprintln(os.Stderr, "agent-add: --name, --language and --proficiency are required")
		os.Exit(2)
	}

	promptText, err := os.ReadFile(*promptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent-add: %v\n", err)
		os.Exit(1)
	}

	store, err := db.New(*database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent-add: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	agent, err := store.CreateAgent(context.Background(), *name, *language, *proficiency, string(promptText))
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent-add: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created agent with id `%d`\n", agent.ID)
}

func defaultDatabase() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "data.db"
}
