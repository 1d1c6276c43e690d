package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealdesk/dealdesk/internal/store/postgres"
)

func main() {
	ctx := context.Background()

	connStr := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		connStr = os.Args[1]
	}
	if connStr == "" {
		log.Fatal("DATABASE_URL or a connection string argument is required")
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping: %v", err)
	}

	fmt.Println("✓ Connected to database")

	if _, err := pool.Exec(ctx, postgres.InitialSchema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	fmt.Println("✓ Schema applied successfully")
}
