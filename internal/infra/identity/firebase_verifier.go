package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
)

var _ adapter.IdentityVerifier = (*FirebaseVerifier)(nil)

// expiryMargin keeps a cached principal from outliving its token.
const expiryMargin = 30 * time.Second

// IDTokenVerifier is the part of *auth.Client the verifier needs.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier checks Firebase ID tokens. The uid becomes the user id and the
// custom claim admin=true grants admin routes. Verified tokens are cached in-process.
type FirebaseVerifier struct {
	client IDTokenVerifier
	cache  *cache.Cache
	ttl    time.Duration
	now    func() time.Time
	log    *zerolog.Logger
}

func NewFirebaseVerifier(client IDTokenVerifier, ttl time.Duration, logger *zerolog.Logger) *FirebaseVerifier {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FirebaseVerifier{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
		now:    time.Now,
		log:    logging.Component(logger, "firebase_identity"),
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*model.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	if p, ok := v.cache.Get(token); ok {
		metrics.IncCacheRequest("identity", "hit")
		cp := *p.(*model.Principal)
		return &cp, nil
	}
	metrics.IncCacheRequest("identity", "miss")

	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		logging.With(ctx, v.log).Debug().Err(err).Msg("id token rejected")
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if tok.UID == "" {
		return nil, fmt.Errorf("%w: token has no uid", domain.ErrUnauthenticated)
	}
	admin, _ := tok.Claims[roleAdmin].(bool)
	p := &model.Principal{UserID: tok.UID, IsAdmin: admin}

	if ttl := v.cacheTTL(tok.Expires); ttl > 0 {
		cp := *p
		v.cache.Set(token, &cp, ttl)
	}
	return p, nil
}

// cacheTTL is the configured ttl capped by the token's own expiry.
func (v *FirebaseVerifier) cacheTTL(expires int64) time.Duration {
	left := time.Unix(expires, 0).Sub(v.now()) - expiryMargin
	if left < v.ttl {
		return left
	}
	return v.ttl
}
