package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if cfg.Server.MirrorBackend != "postgres" {
		log.Printf("MIRROR_BACKEND=%s, nothing to migrate", cfg.Server.MirrorBackend)
		return
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	migrationDir := os.Getenv("MIGRATIONS_DIR")
	if migrationDir == "" {
		migrationDir = "migrations"
	}
	migrationFiles, err := listMigrations(migrationDir, direction)
	if err != nil {
		log.Fatalf("Read migration directory: %v", err)
	}

	ctx := context.Background()
	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			log.Fatalf("Read migration file %s: %v", filename, err)
		}

		log.Printf("Running migration: %s", filename)
		err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, string(content))
			return err
		})
		if err != nil {
			log.Fatalf("Execute migration %s: %v", filename, err)
		}
	}

	log.Printf("Successfully ran %d migration(s) %s", len(migrationFiles), direction)
}

// listMigrations returns the files for direction in the order they must run:
// ascending for up, descending for down.
func listMigrations(dir, direction string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fmt.Sprintf(".%s.sql", direction)) {
			names = append(names, file.Name())
		}
	}

	sort.Strings(names)
	if direction == "down" {
		slices.Reverse(names)
	}
	return names, nil
}
