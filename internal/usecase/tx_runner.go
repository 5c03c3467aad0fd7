package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
)

// Clock returns the current instant. Tests pin it.
type Clock func() time.Time

// RetryPolicy bounds how often a per-user transaction is re-run after a conflict.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// txRunner wraps TransactionManager.WithUserTx with bounded retries on ErrTxConflict.
type txRunner struct {
	tm     repository.TransactionManager
	policy RetryPolicy
	log    *zerolog.Logger
}

func newTxRunner(tm repository.TransactionManager, policy RetryPolicy, log *zerolog.Logger) txRunner {
	if log == nil {
		log = logging.Nop()
	}
	return txRunner{tm: tm, policy: policy.normalized(), log: log}
}

// run executes fn atomically for userID. fn must reset any captured state at the start
// of each call because it may be invoked once per attempt.
func (r txRunner) run(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	var err error
	attempt := 0
	defer func() { metrics.ObserveTxAttempts(attempt) }()

	for attempt < r.policy.MaxAttempts {
		attempt++
		err = r.tm.WithUserTx(ctx, userID, fn)
		if !errors.Is(err, domain.ErrTxConflict) {
			return err
		}
		metrics.IncTxConflict()
		logging.With(ctx, r.log).Debug().Int("attempt", attempt).Msg("per-user transaction conflict")

		if attempt < r.policy.MaxAttempts && r.policy.Backoff > 0 {
			t := time.NewTimer(r.policy.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return domain.ErrStoreUnavailable
			case <-t.C:
			}
		}
	}
	return err
}
