// Package dbtest opens throwaway SQLite databases carrying the full schema.
package dbtest

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns an isolated in-memory database. The pool is capped at one
// connection so concurrent transactions queue instead of failing with
// SQLITE_LOCKED.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:storefront_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// SeedAccount inserts a customer account.
func SeedAccount(t testing.TB, conn *gorm.DB) models.Account {
	t.Helper()
	account := models.Account{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "unused",
		FirstName:    "Test",
		LastName:     "Shopper",
		Role:         enums.AccountRoleCustomer,
	}
	if err := conn.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

// SeedAddress inserts an address owned by accountID.
func SeedAddress(t testing.TB, conn *gorm.DB, accountID uuid.UUID) models.Address {
	t.Helper()
	address := models.Address{
		AccountID:  accountID,
		Line1:      "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
	}
	if err := conn.Create(&address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return address
}

// SeedVariant inserts a variant under a fresh product.
func SeedVariant(t testing.TB, conn *gorm.DB, price string, stock int) models.Variant {
	t.Helper()
	product := models.Product{Name: "Tee"}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{
		ProductID:     product.ID,
		Size:          "M",
		Color:         "black",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

// Stock reloads the stock quantity of a variant.
func Stock(t testing.TB, conn *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var variant models.Variant
	if err := conn.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return variant.StockQuantity
}
