// Command migrate applies the Postgres schema migrations with goose.
//
// Usage:
//
//	migrate up|down|status|version
//
// The connection string comes from CG_POSTGRES_DSN.
package main

import (
	"database/sql"
	"embed"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/contentgen/contentgen-backend/internal/config"
	"github.com/contentgen/contentgen-backend/internal/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Database.PostgresDSN == "" {
		logger.Fatalw("CG_POSTGRES_DSN is required for migrations")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalw("Failed to set dialect", "error", err)
	}

	switch command {
	case "up":
		err = goose.Up(db, "migrations")
	case "down":
		err = goose.Down(db, "migrations")
	case "status":
		err = goose.Status(db, "migrations")
	case "version":
		err = goose.Version(db, "migrations")
	default:
		logger.Fatalw("Unknown command", "command", command)
	}
	if err != nil {
		logger.Fatalw("Migration failed", "command", command, "error", err)
	}

	logger.Infow("Migration complete", "command", command)
}
