package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
)

// ConfirmPaymentInput is what the checkout page posts back after the gateway captured funds.
type ConfirmPaymentInput struct {
	PackageID string `json:"package_id" validate:"required"`
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// PaymentUseCase turns a verified gateway payment into an activation.
type PaymentUseCase interface {
	Confirm(ctx context.Context, userID string, in ConfirmPaymentInput) Result
}

var _ PaymentUseCase = (*paymentUC)(nil)

type paymentUC struct {
	verifier adapter.PaymentVerifier
	subs     SubscriptionUseCase
	log      *zerolog.Logger
}

func NewPaymentUseCase(verifier adapter.PaymentVerifier, subs SubscriptionUseCase, logger *zerolog.Logger) PaymentUseCase {
	if logger == nil {
		logger = logging.Nop()
	}
	return &paymentUC{verifier: verifier, subs: subs, log: logging.Component(logger, "payment")}
}

// Confirm verifies the proof and activates the package. A failed verification leaves
// all state untouched.
func (u *paymentUC) Confirm(ctx context.Context, userID string, in ConfirmPaymentInput) Result {
	ctx = logging.WithUserID(ctx, userID)
	log := logging.With(ctx, u.log)

	if !validIDs(userID, in.PackageID, in.OrderID, in.PaymentID) {
		return failResult(domain.ErrInvalidArgument)
	}

	start := time.Now()
	err := u.verifier.Verify(ctx, adapter.PaymentProof{
		OrderID:   in.OrderID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		reason := "error"
		if errors.Is(err, domain.ErrInvalidSignature) {
			reason = "bad_signature"
		}
		metrics.IncPaymentVerify(u.verifier.Name(), "fail", reason)
		metrics.ObservePaymentVerify("fail", elapsed)
		log.Warn().Err(err).
			Str("order_id", in.OrderID).
			Str("payment_id", in.PaymentID).
			Msg("payment verification failed")
		if !errors.Is(err, domain.ErrInvalidSignature) {
			err = domain.ErrStoreUnavailable
		}
		return failResult(err)
	}
	metrics.IncPaymentVerify(u.verifier.Name(), "ok", "")
	metrics.ObservePaymentVerify("ok", elapsed)

	return u.subs.Activate(ctx, userID, in.PackageID, ActivateOptions{
		Source:    model.PurchaseSourcePayment,
		PaymentID: in.PaymentID,
		OrderID:   in.OrderID,
	})
}
