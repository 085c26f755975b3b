package config

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/buildvars"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

const FileName = "predictctl.yaml"

type AuthType string

const (
	AuthTypeUndefined = AuthType("")
	AuthTypeUser      = AuthType("user")
	AuthTypeApp       = AuthType("app")
)

func (t AuthType) Validate() error {
	switch t {
	case AuthTypeUser, AuthTypeApp:
		return nil
	default:
		return fmt.Errorf("unknown auth type '%s', expected '%s' or '%s'", t, AuthTypeUser, AuthTypeApp)
	}
}

type config struct {
	Channel          string        `yaml:"channel"`
	ClientID         string        `yaml:"client_id"`
	ClientSecret     secret.String `yaml:"client_secret,omitempty"`
	AuthType         AuthType      `yaml:"auth_type"`
	RedirectURI      string        `yaml:"redirect_uri,omitempty"`
	OAuthListenPorts []uint16      `yaml:"oauth_listen_ports,omitempty"`
	AccessToken      secret.String `yaml:"access_token,omitempty"`
	RefreshToken     secret.String `yaml:"refresh_token,omitempty"`
	BroadcasterID    string        `yaml:"broadcaster_id,omitempty"`

	// RecentPredictionsOn401 is "passthrough" (default) or "refresh".
	RecentPredictionsOn401 string `yaml:"recent_predictions_on_401,omitempty"`

	TemplatesDB string `yaml:"templates_db,omitempty"`
}

type Config config

func NewConfig() Config {
	cfg := Config{
		ClientID:         buildvars.TwitchClientID,
		AuthType:         AuthTypeUser,
		RedirectURI:      "http://localhost:3000/",
		OAuthListenPorts: []uint16{3000},
		TemplatesDB:      "templates.sqlite",
	}
	if buildvars.TwitchClientSecret != "" {
		cfg.ClientSecret = secret.NewString(buildvars.TwitchClientSecret)
	}
	return cfg
}

// IsInitialized reports if the application settings needed to start an
// OAuth flow are present.
func (cfg Config) IsInitialized() bool {
	return cfg.Channel != "" &&
		cfg.ClientID != "" &&
		cfg.ClientSecret.Get() != "" &&
		cfg.RedirectURI != ""
}

// IsReady reports if predictions can be managed without any further setup.
func (cfg Config) IsReady() bool {
	return cfg.IsInitialized() &&
		cfg.AccessToken.Get() != "" &&
		cfg.BroadcasterID != ""
}

func (cfg Config) Credentials() types.Credentials {
	return types.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	}
}

func (cfg Config) UnauthorizedPolicy() (twitch.UnauthorizedPolicy, error) {
	return twitch.ParseUnauthorizedPolicy(cfg.RecentPredictionsOn401)
}

func (cfg *Config) SetTokens(tokens types.TokenResponse) {
	cfg.AccessToken = secret.NewString(tokens.AccessToken)
	if tokens.RefreshToken != "" {
		cfg.RefreshToken = secret.NewString(tokens.RefreshToken)
	}
}

// SecretWords returns the values which must never appear in logs.
func (cfg Config) SecretWords() []string {
	var result []string
	for _, s := range []secret.String{cfg.ClientSecret, cfg.AccessToken, cfg.RefreshToken} {
		if v := s.Get(); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func ReadConfig(
	ctx context.Context,
	dir *appdata.Dir,
	cfg *Config,
) error {
	b, err := dir.ReadFile(FileName)
	if err != nil {
		return err
	}

	_, err = cfg.Read(b)
	return err
}

func ReadOrCreateConfigFile(
	ctx context.Context,
	dir *appdata.Dir,
) (*Config, error) {
	exists, err := dir.Exists(FileName)
	if err != nil {
		return nil, err
	}
	if exists {
		data := NewConfig()
		err := ReadConfig(ctx, dir, &data)
		if err != nil {
			return nil, fmt.Errorf("unable to read the config: %w", err)
		}
		return &data, nil
	}

	logger.Debugf(ctx, "cannot find file '%s', creating", FileName)
	data := NewConfig()
	err = WriteConfig(ctx, dir, data)
	if err != nil {
		logger.Errorf(ctx, "unable to write config to '%s': %v", FileName, err)
	} else {
		logger.Debugf(ctx, "wrote to '%s' config %#+v", FileName, data)
	}
	return &data, nil
}

// WriteConfig does not log: it is called with the settings locked, and
// the log filter reads the secrets from the same settings.
func WriteConfig(
	_ context.Context,
	dir *appdata.Dir,
	cfg Config,
) error {
	b, err := cfg.MarshalYAML()
	if err != nil {
		return err
	}
	return dir.WriteFile(FileName, b)
}
