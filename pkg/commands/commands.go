// Package commands is the caller-facing surface: every operation is a
// named command taking string parameters and returning a string payload.
package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/config"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

type ParamSpec struct {
	Name        string
	Default     string
	Description string
}

type Handler func(ctx context.Context, env *Env, params Args) (string, error)

type Command struct {
	Name        string
	Description string
	Params      []ParamSpec
	Handler     Handler
}

// Env is what the commands run against. Parameters not passed explicitly
// are taken from Defaults (the settings file).
type Env struct {
	DataDir    *appdata.Dir
	HTTPClient twitch.HTTPDoer
	Endpoints  twitch.Endpoints
	Defaults   config.Config

	// OnTokensRefreshed is called when a command had to refresh the
	// access token on its own.
	OnTokensRefreshed func(context.Context, types.TokenResponse)
}

func (env *Env) defaultFor(name string) string {
	cfg := env.Defaults
	switch name {
	case "client_id":
		return cfg.ClientID
	case "client_secret":
		return cfg.ClientSecret.Get()
	case "access_token":
		return cfg.AccessToken.Get()
	case "refresh_token":
		return cfg.RefreshToken.Get()
	case "broadcaster_id":
		return cfg.BroadcasterID
	case "username":
		return cfg.Channel
	case "redirect_uri":
		return cfg.RedirectURI
	case "on_401":
		return cfg.RecentPredictionsOn401
	}
	return ""
}

func (env *Env) resolve(cmd Command, params Params) (Args, error) {
	known := map[string]struct{}{}
	values := Params{}
	for _, spec := range cmd.Params {
		known[spec.Name] = struct{}{}
		v, ok := params[spec.Name]
		if !ok || v == "" {
			v = env.defaultFor(spec.Name)
		}
		if v == "" {
			v = spec.Default
		}
		values[spec.Name] = v
	}
	for name := range params {
		if _, ok := known[name]; !ok {
			return Args{}, fmt.Errorf("command '%s' has no parameter '%s'", cmd.Name, name)
		}
	}
	return Args{values: values}, nil
}

// client builds a Twitch client from the credential parameters.
func (env *Env) client(p Args) (*twitch.Client, error) {
	clientID, err := p.Required("client_id")
	if err != nil {
		return nil, err
	}
	opts := []twitch.Option{}
	if env.HTTPClient != nil {
		opts = append(opts, twitch.OptionHTTPClient(env.HTTPClient))
	}
	if env.Endpoints != (twitch.Endpoints{}) {
		opts = append(opts, twitch.OptionEndpoints(env.Endpoints))
	}
	c := twitch.New(types.Credentials{
		ClientID:     clientID,
		ClientSecret: secret.NewString(p.String("client_secret")),
		AccessToken:  secret.NewString(p.String("access_token")),
		RefreshToken: secret.NewString(p.String("refresh_token")),
	}, opts...)
	if env.OnTokensRefreshed != nil {
		c.OnTokensRefreshed(env.OnTokensRefreshed)
	}
	return c, nil
}

var registry = map[string]Command{}

func register(cmd Command) {
	if _, ok := registry[cmd.Name]; ok {
		panic(fmt.Errorf("command '%s' is registered twice", cmd.Name))
	}
	registry[cmd.Name] = cmd
}

// List returns all the commands sorted by name.
func List() []Command {
	result := make([]Command, 0, len(registry))
	for _, cmd := range registry {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func Get(name string) (Command, bool) {
	cmd, ok := registry[name]
	return cmd, ok
}

// Invoke runs the command; on failure the error message is the payload
// to show to the caller.
func Invoke(
	ctx context.Context,
	env *Env,
	name string,
	params Params,
) (_ string, _err error) {
	logger.Debugf(ctx, "Invoke(%s)", name)
	defer func() { logger.Debugf(ctx, "/Invoke(%s): %v", name, _err) }()

	cmd, ok := registry[name]
	if !ok {
		return "", fmt.Errorf("unknown command '%s'", name)
	}
	p, err := env.resolve(cmd, params)
	if err != nil {
		return "", err
	}
	return cmd.Handler(ctx, env, p)
}
