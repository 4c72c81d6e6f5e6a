package identity

import (
	"context"
	"crypto"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
)

type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCVerifier verifies ID tokens issued by an OpenID Connect provider and, when the provider
// was discovered, exchanges authorization codes for them.
type OIDCVerifier struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

var (
	_ Verifier      = (*OIDCVerifier)(nil)
	_ CodeExchanger = (*OIDCVerifier)(nil)
)

// NewOIDCVerifier discovers the provider at cfg.Issuer.
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[NewOIDCVerifier] failed to create OIDC provider")
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile"},
		},
	}, nil
}

// NewStaticOIDCVerifier verifies tokens against fixed public keys, without discovery.
// Code exchange is not available.
func NewStaticOIDCVerifier(issuer, clientID string, keys ...crypto.PublicKey) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: keys}, &oidc.Config{ClientID: clientID}),
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		log.Debug().Err(err).Msg("ID token verification failed")
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "verify ID token")
	}

	var claims gatewayClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "extract claims")
	}
	return claims.toClaims(idToken.Subject)
}

func (v *OIDCVerifier) Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error) {
	if v.oauth2Config == nil {
		return nil, apperrors.Wrapf(apperrors.ErrUnsupported, "code exchange")
	}

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	oauth2Token, err := v.oauth2Config.Exchange(ctx, code, opts...)
	if err != nil {
		log.Debug().Err(err).Msg("authorization code exchange failed")
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "exchange authorization code")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "no ID token in response")
	}
	return v.Verify(ctx, rawIDToken)
}
