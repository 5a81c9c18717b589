package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"salonledger/backend/internal/config"
	"salonledger/backend/internal/logger"
	pgstore "salonledger/backend/internal/store/postgres"
)

func main() {
	steps := flag.Int("steps", 0, "apply n migrations, negative rolls back (with the steps command)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down|steps|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	m, err := pgstore.NewMigrator(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("open migrator", zap.Error(err))
	}
	defer func() { _ = m.Close() }()

	if err := run(m, flag.Arg(0), *steps, log); err != nil {
		log.Error("migration failed", zap.Error(err))
		_ = m.Close()
		os.Exit(1)
	}
}

func run(m *pgstore.Migrator, command string, steps int, log *zap.Logger) error {
	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps":
		if steps == 0 {
			return fmt.Errorf("-steps must be non-zero")
		}
		return m.Steps(steps)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
