package dbtest

import (
	"os"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresDSNEnv names the database used by tests that need real row locks.
const PostgresDSNEnv = "STOREFRONT_TEST_DATABASE_DSN"

// OpenPostgres returns a connection scoped to a fresh schema on the database
// named by PostgresDSNEnv, skipping the test when the variable is unset. The
// schema is dropped on cleanup.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	gormCfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	}

	admin, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	schema := "storefront_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	connCfg.RuntimeParams["search_path"] = schema
	sqlDB := stdlib.OpenDB(*connCfg)
	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	if err != nil {
		t.Fatalf("open schema connection: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if adminDB, err := admin.DB(); err == nil {
			_ = adminDB.Close()
		}
	})

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
