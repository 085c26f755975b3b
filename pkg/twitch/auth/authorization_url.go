package auth

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nicklaw5/helix/v2"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"golang.org/x/oauth2"
)

// Scopes are the permissions required to read and manage predictions.
var Scopes = []string{
	"channel:read:predictions",
	"channel:manage:predictions",
}

func RedirectURI(listenPort uint16) string {
	return fmt.Sprintf("http://localhost:%d/", listenPort)
}

// NewState returns a random value for the `state` parameter of the
// authorization URL.
func NewState() string {
	return uuid.New().String()
}

func OAuth2Config(
	endpoints twitch.Endpoints,
	clientID string,
	redirectURI string,
	scopes []string,
) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoints.AuthorizeURL(),
			TokenURL:  endpoints.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
}

func GetAuthorizationURL(
	endpoints twitch.Endpoints,
	params *helix.AuthorizationURLParams,
	clientID string,
	redirectURI string,
) string {
	var opts []oauth2.AuthCodeOption
	if params.ResponseType != "" {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", params.ResponseType))
	}
	if params.ForceVerify {
		opts = append(opts, oauth2.SetAuthURLParam("force_verify", "true"))
	}
	return OAuth2Config(endpoints, clientID, redirectURI, params.Scopes).AuthCodeURL(params.State, opts...)
}
