package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
)

// HMACVerifier accepts HS256 identity tokens signed with a shared secret. It is meant for
// sandbox setups where no OpenID provider is available.
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
	nowFunc  func() time.Time
}

var _ Verifier = (*HMACVerifier)(nil)

type HMACOption func(*HMACVerifier)

func WithHMACNowFunc(now func() time.Time) HMACOption {
	return func(v *HMACVerifier) {
		v.nowFunc = now
	}
}

func NewHMACVerifier(secret, issuer, audience string, options ...HMACOption) *HMACVerifier {
	v := &HMACVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

type hmacClaims struct {
	jwt.RegisteredClaims
	gatewayClaims
}

func (v *HMACVerifier) Verify(_ context.Context, rawIDToken string) (*Claims, error) {
	var claims hmacClaims
	_, err := jwt.ParseWithClaims(rawIDToken, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowFunc),
	)
	if err != nil {
		log.Debug().Err(err).Msg("identity token rejected")
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "verify identity token")
	}
	return claims.gatewayClaims.toClaims(claims.Subject)
}

// Sign issues a token this verifier accepts.
func (v *HMACVerifier) Sign(c Claims, ttl time.Duration) (string, error) {
	now := v.nowFunc()
	claims := hmacClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   c.Subject,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		gatewayClaims: gatewayClaims{
			Environment:  string(c.Environment),
			APIKey:       c.APIKey,
			APISecret:    c.APISecret,
			MerchantKey:  c.MerchantKey,
			MerchantName: c.MerchantName,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
