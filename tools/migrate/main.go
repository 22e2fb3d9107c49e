package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/md-rashed-zaman/barbershop/libs/config"
	"github.com/md-rashed-zaman/barbershop/libs/runtime"
	"github.com/md-rashed-zaman/barbershop/migrations"
)

// Usage: migrate [up|down|force <version>|version]
func main() {
	_ = config.LoadDotEnv()
	logger := runtime.NewLogger("migrate")

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("missing configuration", "err", err)
		os.Exit(1)
	}

	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Error("open db", "err", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()
	if err := sqlDB.Ping(); err != nil {
		logger.Error("ping db", "err", err)
		os.Exit(1)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		logger.Error("db driver", "err", err)
		os.Exit(1)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("source driver", "err", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Error("create migrator", "err", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(os.Args) < 3 {
			logger.Error("force requires a version")
			os.Exit(2)
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			logger.Error("invalid version", "err", convErr)
			os.Exit(2)
		}
		err = m.Force(version)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logger.Error("read version", "err", verr)
			os.Exit(1)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migrate failed", "command", cmd, "err", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "command", cmd)
}
