package token_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-pay-server/gateway"
	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/jrsteele09/go-pay-server/token"
	"github.com/stretchr/testify/require"
)

// fakeForwarder answers token calls with numbered tokens.
type fakeForwarder struct {
	mu          sync.Mutex
	tokenCalls  int
	tokenStatus int
	tokenBody   func(n int) string
	lastRequest gateway.Request
}

func newFakeForwarder() *fakeForwarder {
	return &fakeForwarder{
		tokenStatus: http.StatusOK,
		tokenBody: func(n int) string {
			return fmt.Sprintf(`{"token":"tok-%d"}`, n)
		},
	}
}

func (f *fakeForwarder) Forward(_ context.Context, req gateway.Request) (*gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRequest = req
	if req.Path != gateway.TokenPath {
		return nil, errors.New("unexpected path " + req.Path)
	}
	f.tokenCalls++
	return &gateway.Response{StatusCode: f.tokenStatus, Body: []byte(f.tokenBody(f.tokenCalls))}, nil
}

func (f *fakeForwarder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

var errUnauthorized = apperrors.NewRemoteError(http.StatusUnauthorized, []byte(`{"message":"expired token"}`))

func TestManager_Fetch(t *testing.T) {
	t.Run("top level token", func(t *testing.T) {
		fwd := newFakeForwarder()
		tok, err := token.New(fwd).Fetch(context.Background(), "s1", gateway.ChannelPinpad)
		require.NoError(t, err)
		require.Equal(t, "tok-1", tok)
		require.Equal(t, gateway.TokenPath, fwd.lastRequest.Path)
		require.Equal(t, http.MethodPost, fwd.lastRequest.Method)
		require.Equal(t, "s1", fwd.lastRequest.SessionID)
	})

	t.Run("nested token", func(t *testing.T) {
		fwd := newFakeForwarder()
		fwd.tokenBody = func(int) string { return `{"data":{"token":"nested"}}` }
		tok, err := token.New(fwd).Fetch(context.Background(), "s1", gateway.ChannelPOS)
		require.NoError(t, err)
		require.Equal(t, "nested", tok)
	})

	t.Run("jwt token", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		}).SignedString([]byte("gateway"))
		require.NoError(t, err)

		fwd := newFakeForwarder()
		fwd.tokenBody = func(int) string { return fmt.Sprintf(`{"access_token":%q}`, signed) }
		tok, err := token.New(fwd, token.WithNowFunc(func() time.Time { return now })).Fetch(context.Background(), "s1", gateway.ChannelPOS)
		require.NoError(t, err)
		require.Equal(t, signed, tok)
	})

	t.Run("empty token", func(t *testing.T) {
		fwd := newFakeForwarder()
		fwd.tokenBody = func(int) string { return `{}` }
		_, err := token.New(fwd).Fetch(context.Background(), "s1", gateway.ChannelPinpad)
		require.ErrorIs(t, err, token.ErrEmptyToken)
	})

	t.Run("refused credentials", func(t *testing.T) {
		fwd := newFakeForwarder()
		fwd.tokenStatus = http.StatusUnauthorized
		fwd.tokenBody = func(int) string { return `{"message":"bad credentials"}` }
		_, err := token.New(fwd).Fetch(context.Background(), "s1", gateway.ChannelPinpad)
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestWithToken(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first attempt", func(t *testing.T) {
		fwd := newFakeForwarder()
		m := token.New(fwd)
		invocations := 0

		got, err := token.WithToken(ctx, m, "s1", gateway.ChannelPinpad, func(_ context.Context, tok string) (string, error) {
			invocations++
			return "charged with " + tok, nil
		})
		require.NoError(t, err)
		require.Equal(t, "charged with tok-1", got)
		require.Equal(t, 1, fwd.calls())
		require.Equal(t, 1, invocations)
	})

	t.Run("401 triggers one refresh", func(t *testing.T) {
		fwd := newFakeForwarder()
		m := token.New(fwd)
		var seen []string

		got, err := token.WithToken(ctx, m, "s1", gateway.ChannelPinpad, func(_ context.Context, tok string) (int, error) {
			seen = append(seen, tok)
			if tok == "tok-1" {
				return 0, errUnauthorized
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, got)
		require.Equal(t, []string{"tok-1", "tok-2"}, seen)
		require.Equal(t, 2, fwd.calls())
	})

	t.Run("always 401 stays bounded", func(t *testing.T) {
		fwd := newFakeForwarder()
		m := token.New(fwd)
		invocations := 0

		_, err := token.WithToken(ctx, m, "s1", gateway.ChannelPOS, func(_ context.Context, _ string) (struct{}, error) {
			invocations++
			return struct{}{}, fmt.Errorf("create: %w", errUnauthorized)
		})
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.Equal(t, 2, fwd.calls())
		require.Equal(t, 2, invocations)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		fwd := newFakeForwarder()
		m := token.New(fwd)
		invocations := 0

		_, err := token.WithToken(ctx, m, "s1", gateway.ChannelPOS, func(_ context.Context, _ string) (struct{}, error) {
			invocations++
			return struct{}{}, apperrors.NewRemoteError(http.StatusBadRequest, nil)
		})
		require.ErrorIs(t, err, apperrors.ErrRemoteRejected)
		require.Equal(t, 1, fwd.calls())
		require.Equal(t, 1, invocations)
	})

	t.Run("token fetch failure skips fn", func(t *testing.T) {
		fwd := newFakeForwarder()
		fwd.tokenStatus = http.StatusBadGateway
		m := token.New(fwd)
		invocations := 0

		_, err := token.WithToken(ctx, m, "s1", gateway.ChannelPOS, func(_ context.Context, _ string) (struct{}, error) {
			invocations++
			return struct{}{}, nil
		})
		require.ErrorIs(t, err, apperrors.ErrRemoteUnavailable)
		require.Equal(t, 0, invocations)
	})
}

func TestHolder(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses token between calls", func(t *testing.T) {
		fwd := newFakeForwarder()
		h := token.NewHolder(token.New(fwd), "s1", gateway.ChannelPinpad, "")
		var seen []string

		for i := 0; i < 3; i++ {
			require.NoError(t, h.Do(ctx, func(_ context.Context, tok string) error {
				seen = append(seen, tok)
				return nil
			}))
		}
		require.Equal(t, []string{"tok-1", "tok-1", "tok-1"}, seen)
		require.Equal(t, 1, fwd.calls())
	})

	t.Run("seeded token refreshed on 401", func(t *testing.T) {
		fwd := newFakeForwarder()
		h := token.NewHolder(token.New(fwd), "s1", gateway.ChannelPinpad, "seed")
		var seen []string

		err := h.Do(ctx, func(_ context.Context, tok string) error {
			seen = append(seen, tok)
			if tok == "seed" {
				return errUnauthorized
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"seed", "tok-1"}, seen)
		require.Equal(t, 1, fwd.calls())
	})

	t.Run("always 401 stays bounded", func(t *testing.T) {
		fwd := newFakeForwarder()
		h := token.NewHolder(token.New(fwd), "s1", gateway.ChannelPOS, "")
		invocations := 0

		err := h.Do(ctx, func(_ context.Context, _ string) error {
			invocations++
			return errUnauthorized
		})
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
		require.Equal(t, 2, fwd.calls())
		require.Equal(t, 2, invocations)
	})
}
