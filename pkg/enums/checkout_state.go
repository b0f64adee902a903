package enums

// CheckoutState labels the stages a checkout attempt moves through.
type CheckoutState string

const (
	CheckoutStateInitiated       CheckoutState = "initiated"
	CheckoutStateStockValidated  CheckoutState = "stock_validated"
	CheckoutStateCommitted       CheckoutState = "committed"
	CheckoutStateAborted         CheckoutState = "aborted"
	CheckoutStateGatewayRejected CheckoutState = "gateway_rejected"
	CheckoutStateFailed          CheckoutState = "failed"
)

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition follows s.
func (s CheckoutState) IsTerminal() bool {
	switch s {
	case CheckoutStateCommitted, CheckoutStateAborted, CheckoutStateGatewayRejected, CheckoutStateFailed:
		return true
	}
	return false
}
