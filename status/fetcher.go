package status

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-pay-server/gateway"
	"github.com/jrsteele09/go-pay-server/token"
)

// Fetcher reads the current gateway record of one transaction.
type Fetcher interface {
	Fetch(ctx context.Context) (*Record, error)
}

type FetcherFunc func(ctx context.Context) (*Record, error)

func (f FetcherFunc) Fetch(ctx context.Context) (*Record, error) {
	return f(ctx)
}

// GatewayFetcher reads status through the credential proxy. Bearer channels keep one token
// across polls and refresh it once when the gateway answers 401.
type GatewayFetcher struct {
	proxy     gateway.Forwarder
	sessionID string
	channel   gateway.Channel
	path      string
	holder    *token.Holder
}

var _ Fetcher = (*GatewayFetcher)(nil)

func NewGatewayFetcher(proxy gateway.Forwarder, tokens *token.Manager, sessionID string, channel gateway.Channel, statusPath string) *GatewayFetcher {
	f := &GatewayFetcher{
		proxy:     proxy,
		sessionID: sessionID,
		channel:   channel,
		path:      statusPath,
	}
	if channel.RequiresBearer() {
		f.holder = token.NewHolder(tokens, sessionID, channel, "")
	}
	return f
}

func (f *GatewayFetcher) Fetch(ctx context.Context) (*Record, error) {
	if f.holder == nil {
		return f.fetch(ctx, "")
	}
	var record *Record
	err := f.holder.Do(ctx, func(ctx context.Context, bearer string) error {
		var err error
		record, err = f.fetch(ctx, bearer)
		return err
	})
	return record, err
}

func (f *GatewayFetcher) fetch(ctx context.Context, bearer string) (*Record, error) {
	resp, err := f.proxy.Forward(ctx, gateway.Request{
		SessionID: f.sessionID,
		Channel:   f.channel,
		Path:      f.path,
		Method:    http.MethodGet,
		Bearer:    bearer,
	})
	if err != nil {
		return nil, err
	}
	if err := gateway.CheckResponse(resp); err != nil {
		return nil, err
	}
	return ParseRecord(resp.Body)
}
