package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateEmbedded())
}

func TestMigrationsEnforceInventoryAndCartInvariants(t *testing.T) {
	read := func(suffix string) string {
		matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
		require.NoError(t, err)
		require.Len(t, matches, 1, "expected one %s migration", suffix)
		body, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		return string(body)
	}

	catalog := read("create_catalog")
	assert.Contains(t, catalog, "CHECK (stock_quantity >= 0)")
	assert.Contains(t, catalog, "CHECK (price >= 0)")

	carts := read("create_carts")
	assert.Contains(t, carts, "UNIQUE (cart_id, variant_id)")
	assert.Contains(t, carts, "CHECK (quantity >= 1)")
	assert.Contains(t, carts, "UNIQUE (account_id)")

	orders := read("create_orders")
	assert.Contains(t, orders, "UNIQUE (payment_reference)")
	assert.Contains(t, orders, "'cancelled'")
	assert.Contains(t, orders, "DROP TABLE IF EXISTS order_lines")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "  Add Gift Cards! ", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_gift_cards.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "-- rollback add_gift_cards"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add gift cards", now)
	require.Error(t, err, "same version and name must not overwrite")

	_, err = CreateSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up\n"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goose Down")

	dir = t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestMaybeRunDevMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:autorun_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	client := db.NewFromConn(conn)

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: os.Stderr})

	require.NoError(t, MaybeRunDev(context.Background(), cfg, logg, client))
	assert.True(t, conn.Migrator().HasTable("variants"))
	assert.True(t, conn.Migrator().HasTable("cart_lines"))
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvProd},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, nil, nil))
}
