package payments

import "context"

// IntentStatus mirrors the lifecycle states a gateway reports for an intent.
type IntentStatus string

const (
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusProcessing      IntentStatus = "processing"
	IntentStatusRequiresAction  IntentStatus = "requires_action"
	IntentStatusRequiresPayment IntentStatus = "requires_payment_method"
	IntentStatusCanceled        IntentStatus = "canceled"
)

// MetadataAccountID is the intent metadata key naming the paying account.
const MetadataAccountID = "account_id"

// Intent is a gateway-side payment intent as seen by checkout.
type Intent struct {
	ID           string       `json:"payment_intent_id"`
	ClientSecret string       `json:"client_secret,omitempty"`
	Status       IntentStatus `json:"status"`
	AmountMinor  int64        `json:"amount"`
	Currency     string       `json:"currency"`
	AccountID    string       `json:"-"`
}

// Gateway creates payment intents and reports their state.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	Confirm(ctx context.Context, intentID string) (*Intent, error)
}
