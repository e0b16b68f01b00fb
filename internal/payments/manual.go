package payments

import "context"

// ManualAdapter covers methods settled outside any gateway: cash on
// delivery and direct bank transfer. Initiate hands back human instructions;
// Verify never confirms automatically, an operator marks these orders paid.
type ManualAdapter struct {
	Instructions string
}

func NewManualAdapter(instructions string) *ManualAdapter {
	return &ManualAdapter{Instructions: instructions}
}

func (m *ManualAdapter) InitiatePayment(_ context.Context, req PaymentRequest) (PaymentResponse, error) {
	return PaymentResponse{
		Data: map[string]string{
			"reference":    req.Reference,
			"instructions": m.Instructions,
		},
	}, nil
}

func (m *ManualAdapter) VerifyPayment(_ context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	return PaymentVerifyResponse{Success: false, Reference: req.Reference}, nil
}
