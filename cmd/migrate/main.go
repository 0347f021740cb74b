package main

import (
	"flag"
	"fmt"
	"os"

	"dpp-certification/internal/config"
	"dpp-certification/internal/database"
	"dpp-certification/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: migrate [-dir migrations] <up|status>`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "directory holding goose migrations")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	log := logger.NewWithDefaults()
	defer log.Sync()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer dbService.Close()

	switch flag.Arg(0) {
	case "up":
		err = database.RunMigrations(dbService.DB(), *dir, log)
	case "status":
		err = database.GetMigrationStatus(dbService.DB(), *dir)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}
