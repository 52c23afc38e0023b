// Command pgload copies the derived Parquet tables into PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"pricetrends/internal/pgload"
)

func main() {
	dataDir := flag.String("data", "data", "Directory holding the derived tables")
	dbHost := flag.String("host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("port", 5432, "PostgreSQL port")
	dbUser := flag.String("user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("password", "", "PostgreSQL password")
	dbName := flag.String("dbname", "pricetrends", "PostgreSQL database name")
	initSchema := flag.Bool("init", false, "Initialize database schema")

	flag.Parse()

	ctx := context.Background()

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		*dbUser, *dbPassword, *dbHost, *dbPort, *dbName)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("Failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database successfully")

	if *initSchema {
		if err := pgload.InitSchema(ctx, pool); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("Schema initialized successfully")
	}

	stats, err := pgload.Load(ctx, pool, *dataDir)
	if err != nil {
		log.Fatalf("Failed to load tables: %v", err)
	}
	log.Printf("Load batch %s completed successfully", stats.BatchID)
}
