package payment

import (
	"context"
	"strings"
	"sync"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentVerifier = (*NoopVerifier)(nil)

// NoopVerifier accepts any proof with a non-empty signature. For dev and tests only.
// It remembers what it accepted so tests can assert on it.
type NoopVerifier struct {
	mu       sync.Mutex
	accepted []adapter.PaymentProof
}

func NewNoopVerifier() *NoopVerifier {
	return &NoopVerifier{}
}

func (v *NoopVerifier) Name() string { return "noop" }

func (v *NoopVerifier) Verify(_ context.Context, proof adapter.PaymentProof) error {
	if strings.TrimSpace(proof.Signature) == "" {
		return domain.ErrInvalidSignature
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accepted = append(v.accepted, proof)
	return nil
}

// Accepted returns a copy of the proofs verified so far.
func (v *NoopVerifier) Accepted() []adapter.PaymentProof {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]adapter.PaymentProof(nil), v.accepted...)
}
