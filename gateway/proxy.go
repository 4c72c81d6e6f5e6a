package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/internal/metrics"
	"github.com/jrsteele09/go-pay-server/sessions"
	"github.com/rs/zerolog/log"
)

const maxResponseBytes = 4 << 20

// Request is a call a client wants forwarded to the gateway on behalf of a session.
type Request struct {
	SessionID string
	Channel   Channel
	Path      string
	Method    string
	Body      []byte
	Bearer    string
	Header    http.Header // extra headers, e.g. Idempotency-Key
}

// Response is the gateway's answer, passed back without interpretation.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the gateway answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// CheckResponse converts a non-2xx response into a *errors.RemoteError.
func CheckResponse(resp *Response) error {
	if resp.OK() {
		return nil
	}
	return apperrors.NewRemoteError(resp.StatusCode, resp.Body)
}

// BaseURLs holds the two fixed gateway endpoints.
type BaseURLs struct {
	Sandbox    string
	Production string
}

func (b BaseURLs) For(env sessions.Environment) (string, error) {
	switch env {
	case sessions.EnvironmentSandbox:
		return b.Sandbox, nil
	case sessions.EnvironmentProduction:
		return b.Production, nil
	}
	return "", fmt.Errorf("unknown environment %q", env)
}

// Forwarder is the credential proxy contract the token manager and creators depend on.
type Forwarder interface {
	Forward(ctx context.Context, req Request) (*Response, error)
}

var _ Forwarder = (*Proxy)(nil)

// Proxy resolves a session's credentials and forwards calls to the gateway.
type Proxy struct {
	sessions   sessions.Repo
	baseURLs   BaseURLs
	httpClient *http.Client
}

type ProxyOption func(*Proxy)

func WithHTTPClient(client *http.Client) ProxyOption {
	return func(p *Proxy) {
		p.httpClient = client
	}
}

func NewProxy(repo sessions.Repo, baseURLs BaseURLs, options ...ProxyOption) *Proxy {
	p := &Proxy{
		sessions:   repo,
		baseURLs:   baseURLs,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

type tokenRequestBody struct {
	Auth struct {
		Username string `json:"username"`
		APIKey   string `json:"apiKey"`
	} `json:"auth"`
}

func (p *Proxy) Forward(ctx context.Context, req Request) (*Response, error) {
	session, err := p.sessions.Get(ctx, req.SessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrUnauthorized, "resolve session")
		}
		return nil, apperrors.Wrapf(err, "[Proxy Forward] resolve session")
	}

	baseURL, err := p.baseURLs.For(session.Environment)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Proxy Forward]")
	}

	path := strings.Trim(req.Path, "/")
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	body := req.Body

	if path == TokenPath {
		var tokenBody tokenRequestBody
		tokenBody.Auth.Username = session.APIKey
		tokenBody.Auth.APIKey = session.APISecret
		if body, err = json.Marshal(tokenBody); err != nil {
			return nil, apperrors.Wrapf(err, "[Proxy Forward] token body")
		}
		method = http.MethodPost
	} else if req.Channel.RequiresBearer() && req.Bearer == "" {
		return nil, apperrors.ErrBearerRequired
	}

	target := strings.TrimRight(baseURL, "/") + "/" + req.Channel.String()
	if path != "" {
		target += "/" + path
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Proxy Forward] build request")
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.SetBasicAuth(session.APIKey, session.APISecret)
	httpReq.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if path != TokenPath && req.Bearer != "" {
		httpReq.Header.Set(BearerHeader, req.Bearer)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		metrics.ProxyRequest(req.Channel.String(), 0)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("channel", req.Channel.String()).Str("path", path).Msg("gateway call failed")
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRemoteUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		metrics.ProxyRequest(req.Channel.String(), 0)
		return nil, fmt.Errorf("%w: read body: %v", apperrors.ErrRemoteUnavailable, err)
	}
	metrics.ProxyRequest(req.Channel.String(), httpResp.StatusCode)

	log.Debug().
		Str("channel", req.Channel.String()).
		Str("method", method).
		Str("path", path).
		Int("status", httpResp.StatusCode).
		Object("session", session).
		Msg("gateway call")

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}
