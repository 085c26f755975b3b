package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/xaionaro-go/predictctl/pkg/secret"
)

// LegacyFileName is the file the older versions of the application kept
// the settings in.
const LegacyFileName = ".env"

// FromDotEnv converts the settings of the older versions (a dotenv file
// with TWITCH_* variables). Unknown variables are ignored.
func FromDotEnv(b []byte) (Config, error) {
	vars, err := godotenv.UnmarshalBytes(b)
	if err != nil {
		return Config{}, fmt.Errorf("unable to parse the dotenv file: %w", err)
	}

	cfg := NewConfig()
	cfg.Channel = vars["TWITCH_CHANNEL_NAME"]
	cfg.ClientID = vars["TWITCH_CLIENT_ID"]
	cfg.BroadcasterID = vars["TWITCH_BROADCASTER_ID"]
	for k, dst := range map[string]*secret.String{
		"TWITCH_CLIENT_SECRET": &cfg.ClientSecret,
		"TWITCH_ACCESS_TOKEN":  &cfg.AccessToken,
		"TWITCH_REFRESH_TOKEN": &cfg.RefreshToken,
	} {
		if v := vars[k]; v != "" {
			*dst = secret.NewString(v)
		}
	}
	if uri := vars["OAUTH_REDIRECT_URI"]; uri != "" {
		cfg.RedirectURI = uri
		if u, err := url.Parse(uri); err == nil {
			if port, err := strconv.ParseUint(u.Port(), 10, 16); err == nil {
				cfg.OAuthListenPorts = []uint16{uint16(port)}
			}
		}
	}
	return cfg, nil
}
