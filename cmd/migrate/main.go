package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movielog/db"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, down, reset, status, version")
	flag.Parse()

	loadEnvFiles()

	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL is required")
	}
	if !validCommand(*command) {
		log.Fatalf("Unknown command: %s. Use: up, down, reset, status, version", *command)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags)
	if err := db.Run(ctx, pool, *command, logger); err != nil {
		log.Fatalf("Migration %s failed: %v", *command, err)
	}
	logger.Printf("%s completed", *command)
}
