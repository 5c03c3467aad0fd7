package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentVerifier = (*RazorpayVerifier)(nil)

// RazorpayVerifier checks the checkout signature Razorpay hands back to the client:
// hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)).
type RazorpayVerifier struct {
	keySecret []byte
}

func NewRazorpayVerifier(keySecret string) (*RazorpayVerifier, error) {
	if keySecret == "" {
		return nil, errors.New("razorpay key secret empty")
	}
	return &RazorpayVerifier{keySecret: []byte(keySecret)}, nil
}

func (v *RazorpayVerifier) Name() string { return "razorpay" }

func (v *RazorpayVerifier) Verify(_ context.Context, proof adapter.PaymentProof) error {
	if proof.OrderID == "" || proof.PaymentID == "" {
		return domain.ErrInvalidArgument
	}
	got, err := hex.DecodeString(strings.TrimSpace(proof.Signature))
	if err != nil || len(got) != sha256.Size {
		return domain.ErrInvalidSignature
	}
	if !hmac.Equal(got, v.sign(proof.OrderID, proof.PaymentID)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (v *RazorpayVerifier) sign(orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, v.keySecret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

// Sign returns the hex signature for a proof, as the gateway would compute it.
func (v *RazorpayVerifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.sign(orderID, paymentID))
}
