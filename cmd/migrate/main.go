package main

import (
	"flag"

	"snapledger/internal/config"
	"snapledger/internal/logger"
	"snapledger/internal/storage"
)

func main() {
	log := logger.New()

	dbPath := flag.String("db", "", "SQLite database path (defaults to SQLITE_DB_PATH)")
	flag.Parse()

	path := *dbPath
	if path == "" {
		path = config.Load().SQLiteDBPath
	}

	log.Info().Str("db", path).Msg("Running migrations")

	if err := storage.RunMigrations(path); err != nil {
		log.Fatal().Err(err).Msg("Migrations failed")
	}

	log.Info().Msg("Migrations applied")
}
