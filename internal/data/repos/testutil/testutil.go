package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/F-O-T/contentagen-nx-sub000/internal/domain"
	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

var dbSeq atomic.Int64

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("development")
	if err != nil {
		tb.Fatalf("failed to init logger: %v", err)
	}
	return log
}

// DB returns a migrated database private to the test. It uses Postgres when
// TEST_POSTGRES_DSN is set and an in-memory SQLite database otherwise.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			tb.Fatalf("open postgres: %v", err)
		}
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
			tb.Fatalf("create vector extension: %v", err)
		}
		if err := db.AutoMigrate(domain.AllModels()...); err != nil {
			tb.Fatalf("migrate: %v", err)
		}
		return db
	}

	name := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(name), cfg)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	// One connection serializes writers; SQLite would otherwise report
	// "database table is locked" under concurrent workers.
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}
