package payments

// PaymentRequest carries what every provider needs to start a payment.
// Amounts are integer minor units, never floats.
type PaymentRequest struct {
	Reference     string // order number, doubles as the idempotency key
	AmountCents   int64
	Currency      string // "COP"
	OrderName     string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type PaymentResponse struct {
	PaymentURL string            // hosted checkout URL, empty for manual methods
	Data       map[string]string // provider-specific extras (reference, instructions)
}

type PaymentVerifyRequest struct {
	Reference string
	Data      map[string]string // webhook/redirect payload fields
}

type PaymentVerifyResponse struct {
	Success      bool
	Reference    string
	ProviderTxID string
}
