package adapter

import "context"

// PaymentProof is what the checkout page hands back after the gateway captured a payment.
type PaymentProof struct {
	OrderID   string
	PaymentID string
	Signature string
}

// PaymentVerifier checks that a proof was issued by the gateway.
// It returns domain.ErrInvalidSignature when the proof does not verify.
type PaymentVerifier interface {
	Name() string
	Verify(ctx context.Context, proof PaymentProof) error
}
