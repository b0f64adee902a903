package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

func TestMergeSumsQuantitiesAndRemovesGuestCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v1 := dbtest.SeedVariant(t, h.conn, "20.00", 10)
	v2 := dbtest.SeedVariant(t, h.conn, "5.00", 10)

	if _, err := h.svc.AddLine(ctx, Account(account.ID), v1.ID, 1); err != nil {
		t.Fatalf("seed account cart: %v", err)
	}
	if _, err := h.svc.AddLine(ctx, Guest("g1"), v1.ID, 2); err != nil {
		t.Fatalf("seed guest v1: %v", err)
	}
	if _, err := h.svc.AddLine(ctx, Guest("g1"), v2.ID, 3); err != nil {
		t.Fatalf("seed guest v2: %v", err)
	}

	result, err := h.svc.Merge(ctx, "g1", account.ID)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.MergedLines != 2 {
		t.Fatalf("expected 2 merged lines, got %d", result.MergedLines)
	}
	got := map[uuid.UUID]int{}
	for _, line := range result.Cart.Lines {
		got[line.VariantID] = line.Quantity
	}
	if got[v1.ID] != 3 || got[v2.ID] != 3 {
		t.Fatalf("unexpected merged quantities: %+v", got)
	}
	if h.guests.has("g1") {
		t.Fatal("expected guest cart to be removed")
	}
}

func TestMergeIsAtMostOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v1 := dbtest.SeedVariant(t, h.conn, "20.00", 10)

	if _, err := h.svc.AddLine(ctx, Guest("g2"), v1.ID, 2); err != nil {
		t.Fatalf("seed guest: %v", err)
	}
	first, err := h.svc.Merge(ctx, "g2", account.ID)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second, err := h.svc.Merge(ctx, "g2", account.ID)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if second.MergedLines != 0 {
		t.Fatalf("expected no-op second merge, got %d lines", second.MergedLines)
	}
	if first.Cart.Lines[0].Quantity != 2 || second.Cart.Lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2 after both merges, got %d and %d",
			first.Cart.Lines[0].Quantity, second.Cart.Lines[0].Quantity)
	}
}

func TestMergeEmptyGuestCartIsNoop(t *testing.T) {
	h := newHarness(t)
	account := dbtest.SeedAccount(t, h.conn)

	result, err := h.svc.Merge(context.Background(), "nobody", account.ID)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.MergedLines != 0 || len(result.Cart.Lines) != 0 {
		t.Fatalf("expected empty no-op, got %+v", result)
	}
}

func TestMergeDropsUnknownVariants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v1 := dbtest.SeedVariant(t, h.conn, "20.00", 10)
	ghost := dbtest.SeedVariant(t, h.conn, "1.00", 1)

	if _, err := h.svc.AddLine(ctx, Guest("g3"), v1.ID, 1); err != nil {
		t.Fatalf("seed guest: %v", err)
	}
	if _, err := h.svc.AddLine(ctx, Guest("g3"), ghost.ID, 1); err != nil {
		t.Fatalf("seed guest ghost: %v", err)
	}
	if err := h.conn.Delete(&models.Variant{}, "id = ?", ghost.ID).Error; err != nil {
		t.Fatalf("delete variant: %v", err)
	}

	result, err := h.svc.Merge(ctx, "g3", account.ID)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.MergedLines != 1 || len(result.DroppedLines) != 1 || result.DroppedLines[0] != ghost.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestMergeRequiresAccount(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Merge(context.Background(), "g4", uuid.Nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestMergeClaimFailureLeavesGuestCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v1 := dbtest.SeedVariant(t, h.conn, "20.00", 10)

	if _, err := h.svc.AddLine(ctx, Guest("g5"), v1.ID, 1); err != nil {
		t.Fatalf("seed guest: %v", err)
	}
	h.guests.takeErr = errors.New("redis down")

	if _, err := h.svc.Merge(ctx, "g5", account.ID); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !h.guests.has("g5") {
		t.Fatal("expected guest cart to survive a failed claim")
	}
}

func TestMergeRestoresGuestCartWhenAccountWriteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := dbtest.SeedAccount(t, h.conn)
	v1 := dbtest.SeedVariant(t, h.conn, "20.00", 10)

	if _, err := h.svc.AddLine(ctx, Guest("g6"), v1.ID, 2); err != nil {
		t.Fatalf("seed guest: %v", err)
	}
	if err := h.conn.Migrator().DropTable(&models.CartLine{}); err != nil {
		t.Fatalf("drop cart lines: %v", err)
	}

	if _, err := h.svc.Merge(ctx, "g6", account.ID); err == nil {
		t.Fatal("expected merge to fail")
	}
	lines, err := newGuestStore(h.guests, "g6", 0).Load(ctx)
	if err != nil {
		t.Fatalf("load guest: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("expected guest cart restored, got %+v", lines)
	}
}
