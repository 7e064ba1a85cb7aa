package main

import (
	"context"
	"os"

	"github.com/shawon2210/Online24Pharmacy-sub001/config"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/database"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/logger"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/migrate"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()
	cfg := config.Load(log)

	var db *gorm.DB
	if cfg.DB.Driver == config.DriverSQLite {
		var err error
		if db, err = database.ConnectSQLite(cfg.DB.Path, log); err != nil {
			log.Fatal("failed to open sqlite", zap.Error(err))
		}
	} else {
		db = database.ConnectDB(&cfg.DB.Config, log)
	}
	defer database.CloseDB(db, log)

	if err := migrate.MigrateDB(context.Background(), db, log, migrate.DefaultMigrateOptions()); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migration completed")
}
