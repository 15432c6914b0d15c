// user-onboard creates a user and their first conversation with an existing
// agent.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/francoise-ai/francoise/internal/db"
)

func main() {
	_ = godotenv.Load()

	name := flag.StringP("name", "n", "", "user name")
	email := flag.String("email", "", "user email address")
	password := flag.String("password", "", "user password")
	agent := flag.Int64P("agent", "a", 0, "agent id to start a conversation with")
	model := flag.String("model", "gemma", "model for the conversation")
	proficiency := flag.String("proficiency", "", "proficiency level for the conversation")
	database := flag.StringP("database", "d", defaultDatabase(), "path to the sqlite database")
	flag.Parse()

	if *name == "" || *email == "" || *password == "" || *agent == 0 || *proficiency == "" {
		fmt.Fprintln(os.Stderr, "user-onboard: --name, --email, --password, --agent and --proficiency are required")
		os.Exit(2)
	}

	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		fmt.Fprintf(os.Stderr, "user-onboard: %v\n", err)
		os.Exit(1)
	}
	salt := hex.EncodeToString(saltBytes)

	hashed, err := bcrypt.GenerateFromPassword([]byte(salt+*password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "user-onboard: %v\n", err)
		os.Exit(1)
	}

	store, err := db.New(*database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "user-onboard: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, *name, *email, salt, string(hashed))
	if err != nil {
		fmt.Fprintf(os.Stderr, "user-onboard: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created user with id `%d`\n", user.ID)

	conv, err := store.CreateConversation(ctx, user.ID, *agent, *model, *proficiency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "user-onboard: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created conversation with id `%d` for user `%d` and agent `%d`\n", conv.ID, user.ID, *agent)
}

func defaultDatabase() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "data.db"
}
