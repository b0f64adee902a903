package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"pending", "processing", "shipped", "delivered", "cancelled"} {
		status, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if !status.IsValid() || status.String() != raw {
			t.Fatalf("round trip failed for %q", raw)
		}
	}
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if OrderStatus("PENDING").IsValid() {
		t.Fatal("status parsing is case sensitive")
	}
}

func TestParseAccountRole(t *testing.T) {
	role, err := ParseAccountRole("admin")
	if err != nil || role != AccountRoleAdmin {
		t.Fatalf("expected admin role, got %q err=%v", role, err)
	}
	if _, err := ParseAccountRole("owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestCheckoutStateTerminal(t *testing.T) {
	if CheckoutStateInitiated.IsTerminal() || CheckoutStateStockValidated.IsTerminal() {
		t.Fatal("intermediate states must not be terminal")
	}
	for _, s := range []CheckoutState{CheckoutStateCommitted, CheckoutStateAborted, CheckoutStateGatewayRejected, CheckoutStateFailed} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
}
