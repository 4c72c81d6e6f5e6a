package gateway

import "fmt"

// Channel is one of the three transaction-creation paths exposed by the gateway.
type Channel string

const (
	ChannelOrder  Channel = "order" // hosted payment link
	ChannelPinpad Channel = "pinpad"
	ChannelPOS    Channel = "pos"
)

// TokenPath is the sub-path that trades session credentials for a bearer token.
const TokenPath = "remote/token"

// BearerHeader carries the short-lived gateway token on pinpad and POS calls.
const BearerHeader = "token"

func ParseChannel(s string) (Channel, error) {
	switch c := Channel(s); c {
	case ChannelOrder, ChannelPinpad, ChannelPOS:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// RequiresBearer reports whether calls other than the token call need a bearer token.
func (c Channel) RequiresBearer() bool {
	return c == ChannelPinpad || c == ChannelPOS
}

func (c Channel) String() string {
	return string(c)
}
