package types

import (
	"github.com/xaionaro-go/predictctl/pkg/secret"
)

// Credentials is everything needed to talk to Twitch on behalf of
// a single account. Only AccessToken and RefreshToken change during
// the lifetime of a Client (after a refresh exchange).
type Credentials struct {
	ClientID     string
	ClientSecret secret.String
	AccessToken  secret.String
	RefreshToken secret.String
}

func (c Credentials) HasRefreshToken() bool {
	return c.RefreshToken.Get() != ""
}
