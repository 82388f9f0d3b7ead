package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/db"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// migrate runs goose commands against POSTGRES_DSN:
//
//	migrate up
//	migrate down
//	migrate status
//	migrate up-to 2
func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate <up|down|status|version|redo|reset|up-to|down-to> [version]\n")
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()

	sqlDB, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer sqlDB.Close()

	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}

	if err := db.Migrate(ctx, sqlDB, flag.Arg(0), log, flag.Args()[1:]...); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
}
