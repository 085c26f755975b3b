package twitch

import (
	"github.com/nicklaw5/helix/v2"
)

type Endpoints struct {
	// AuthBaseURL is the OAuth2 base, e.g. "https://id.twitch.tv/oauth2".
	AuthBaseURL string
	// APIBaseURL is the Helix base, e.g. "https://api.twitch.tv/helix".
	APIBaseURL string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthBaseURL: helix.AuthBaseURL,
		APIBaseURL:  helix.DefaultAPIBaseURL,
	}
}

func (e Endpoints) TokenURL() string {
	return e.AuthBaseURL + "/token"
}

func (e Endpoints) ValidateURL() string {
	return e.AuthBaseURL + "/validate"
}

func (e Endpoints) AuthorizeURL() string {
	return e.AuthBaseURL + "/authorize"
}

func (e Endpoints) API(path string) string {
	return e.APIBaseURL + path
}
