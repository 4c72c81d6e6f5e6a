package identity

import (
	"context"
	"strings"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/sessions"
)

// Claims is the gateway credential material an identity provider vouches for.
type Claims struct {
	Subject      string
	Environment  sessions.Environment
	APIKey       string
	APISecret    string
	MerchantKey  string
	MerchantName string
}

// gatewayClaims is the JSON shape of the custom claims in an ID token.
type gatewayClaims struct {
	Environment  string `json:"environment"`
	APIKey       string `json:"api_key"`
	APISecret    string `json:"api_secret"`
	MerchantKey  string `json:"merchant_key"`
	MerchantName string `json:"merchant_name"`
}

func (g gatewayClaims) toClaims(subject string) (*Claims, error) {
	c := &Claims{
		Subject:      subject,
		Environment:  sessions.Environment(strings.ToLower(strings.TrimSpace(g.Environment))),
		APIKey:       g.APIKey,
		APISecret:    g.APISecret,
		MerchantKey:  g.MerchantKey,
		MerchantName: g.MerchantName,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the claims carry usable gateway credentials.
func (c *Claims) Validate() error {
	if !c.Environment.Valid() {
		return apperrors.Wrapf(apperrors.ErrUnauthorized, "identity token has no valid environment")
	}
	if c.APIKey == "" || c.APISecret == "" {
		return apperrors.Wrapf(apperrors.ErrUnauthorized, "identity token has no gateway credentials")
	}
	return nil
}

// Verifier turns a raw identity token into gateway claims.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

// CodeExchanger trades an authorization code (with its PKCE verifier) for verified claims.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error)
}
