// db-init creates the database schema.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/francoise-ai/francoise/internal/db"
)

func main() {
	_ = godotenv.Load()

	database := flag.StringP("database", "d", defaultDatabase(), "path to the sqlite database")
	flag.Parse()

	store, err := db.New(*database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db-init: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Printf("initialized schema in `%s`\n", *database)
}

func defaultDatabase() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "data.db"
}
