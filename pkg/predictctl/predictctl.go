// Package predictctl ties the settings, the Twitch client and the
// templates database together.
package predictctl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/eventbus"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/config"
	"github.com/xaionaro-go/predictctl/pkg/oauthhandler"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/templates"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/auth"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
	"github.com/xaionaro-go/xsync"
)

var ErrNotInitialized = errors.New("the settings are incomplete: channel, client_id, client_secret and redirect_uri are required")

type PredictCtl struct {
	DataDir      *appdata.Dir
	EventBus     *eventbus.EventBus
	OAuthHandler auth.OAuthHandler
	HTTPClient   twitch.HTTPDoer
	Endpoints    twitch.Endpoints

	configLocker xsync.Mutex
	config       config.Config
	secretWords  atomic.Pointer[[]string]

	clientLocker xsync.Mutex
	client       *twitch.Client
	templates    *templates.Store

	stopListener func()
}

type Option func(*PredictCtl)

func OptionEventBus(bus *eventbus.EventBus) Option {
	return func(p *PredictCtl) {
		p.EventBus = bus
	}
}

func OptionOAuthHandler(handler auth.OAuthHandler) Option {
	return func(p *PredictCtl) {
		p.OAuthHandler = handler
	}
}

func OptionHTTPClient(doer twitch.HTTPDoer) Option {
	return func(p *PredictCtl) {
		p.HTTPClient = doer
	}
}

func OptionEndpoints(endpoints twitch.Endpoints) Option {
	return func(p *PredictCtl) {
		p.Endpoints = endpoints
	}
}

func New(
	ctx context.Context,
	dataDir *appdata.Dir,
	opts ...Option,
) (_ *PredictCtl, _err error) {
	ctx = belt.WithField(ctx, "module", "predictctl")
	logger.Debugf(ctx, "New")
	defer func() { logger.Debugf(ctx, "/New: %v", _err) }()

	cfg, err := config.ReadOrCreateConfigFile(ctx, dataDir)
	if err != nil {
		return nil, fmt.Errorf("unable to read the config: %w", err)
	}

	p := &PredictCtl{
		DataDir:   dataDir,
		Endpoints: twitch.DefaultEndpoints(),
		config:    *cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.EventBus == nil {
		p.EventBus = eventbus.New()
	}
	if p.OAuthHandler == nil {
		p.OAuthHandler = oauthhandler.OAuth2HandlerViaBrowser
	}

	p.setSecretWords(p.config)

	if err := p.startTokensListener(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Close saves the pending refreshed tokens and closes the templates database.
func (p *PredictCtl) Close() error {
	if p.stopListener != nil {
		p.stopListener()
	}

	var result *multierror.Error
	ctx := context.Background()
	p.clientLocker.Do(ctx, func() {
		if p.templates == nil {
			return
		}
		if err := p.templates.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close the templates database: %w", err))
		}
		p.templates = nil
	})
	return result.ErrorOrNil()
}

func (p *PredictCtl) saveRefreshedTokens(
	ctx context.Context,
	ev EventTokensRefreshed,
) {
	logger.Debugf(ctx, "saveRefreshedTokens")
	err := p.UpdateConfig(ctx, func(cfg *config.Config) error {
		cfg.SetTokens(ev.Tokens)
		return nil
	})
	if err != nil {
		errmon.ObserveErrorCtx(ctx, fmt.Errorf("unable to save the refreshed tokens: %w", err))
	}
}

// SecretWords returns the secrets of the last loaded or saved settings. It
// never locks, so it is safe to call from a logger hook.
func (p *PredictCtl) SecretWords() []string {
	words := p.secretWords.Load()
	if words == nil {
		return nil
	}
	return *words
}

func (p *PredictCtl) setSecretWords(cfg config.Config) {
	words := cfg.SecretWords()
	p.secretWords.Store(&words)
}

func (p *PredictCtl) Config(ctx context.Context) config.Config {
	return xsync.DoR1(ctx, &p.configLocker, func() config.Config {
		return p.config
	})
}

// UpdateConfig applies fn to a copy of the settings and saves the result;
// nothing changes if fn or the write fails.
func (p *PredictCtl) UpdateConfig(
	ctx context.Context,
	fn func(cfg *config.Config) error,
) (_err error) {
	logger.Debugf(ctx, "UpdateConfig")
	defer func() { logger.Debugf(ctx, "/UpdateConfig: %v", _err) }()

	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &p.configLocker, func() error {
		cfg := p.config
		cfg.OAuthListenPorts = append([]uint16{}, p.config.OAuthListenPorts...)
		if err := fn(&cfg); err != nil {
			return err
		}
		if err := config.WriteConfig(ctx, p.DataDir, cfg); err != nil {
			return fmt.Errorf("unable to save the config: %w", err)
		}
		p.config = cfg
		p.setSecretWords(cfg)
		return nil
	})
	if err != nil {
		return err
	}
	sendEvent(ctx, p.EventBus, EventConfigSaved{})
	return nil
}

// Client returns the Twitch client built from the current settings.
func (p *PredictCtl) Client(ctx context.Context) (*twitch.Client, error) {
	cfg := p.Config(ctx)
	policy, err := cfg.UnauthorizedPolicy()
	if err != nil {
		return nil, err
	}

	return xsync.DoR1(ctx, &p.clientLocker, func() *twitch.Client {
		if p.client != nil {
			return p.client
		}
		opts := []twitch.Option{twitch.OptionEndpoints(p.Endpoints)}
		if p.HTTPClient != nil {
			opts = append(opts, twitch.OptionHTTPClient(p.HTTPClient))
		}
		client := twitch.New(cfg.Credentials(), opts...)
		client.RecentPredictionsUnauthorizedPolicy = policy
		client.OnTokensRefreshed(func(ctx context.Context, tokens types.TokenResponse) {
			sendEvent(ctx, p.EventBus, EventTokensRefreshed{Tokens: tokens})
		})
		p.client = client
		return client
	}), nil
}

func (p *PredictCtl) setTokens(
	ctx context.Context,
	tokens types.TokenResponse,
	resetBroadcasterID bool,
) error {
	err := p.UpdateConfig(ctx, func(cfg *config.Config) error {
		cfg.SetTokens(tokens)
		if resetBroadcasterID {
			cfg.BroadcasterID = ""
		}
		return nil
	})
	if err != nil {
		return err
	}

	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	client.SetAccessToken(ctx, tokens.AccessToken)
	if tokens.RefreshToken != "" {
		client.SetRefreshToken(ctx, tokens.RefreshToken)
	}
	return nil
}

// EnsureTokens obtains an access token if there is none yet: through the
// browser for the "user" auth type, or with the client credentials for
// "app".
func (p *PredictCtl) EnsureTokens(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "EnsureTokens")
	defer func() { logger.Debugf(ctx, "/EnsureTokens: %v", _err) }()

	cfg := p.Config(ctx)
	if !cfg.IsInitialized() {
		return ErrNotInitialized
	}
	if cfg.AccessToken.Get() != "" {
		return nil
	}

	switch cfg.AuthType {
	case config.AuthTypeApp:
		client, err := p.Client(ctx)
		if err != nil {
			return err
		}
		token, err := auth.NewTokenByApp(ctx, client)
		if err != nil {
			return err
		}
		return p.setTokens(ctx, types.TokenResponse{AccessToken: token.Get()}, false)
	default:
		return p.Login(ctx)
	}
}

// Login runs the authorization-code flow unconditionally.
func (p *PredictCtl) Login(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Login")
	defer func() { logger.Debugf(ctx, "/Login: %v", _err) }()

	cfg := p.Config(ctx)
	if !cfg.IsInitialized() {
		return ErrNotInitialized
	}
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}

	state := auth.NewState()
	if err := p.DataDir.SaveOAuthState(ctx, state); err != nil {
		return fmt.Errorf("unable to save the OAuth state: %w", err)
	}

	ports, err := listenPorts(cfg)
	if err != nil {
		return err
	}

	return auth.NewClientCode(
		ctx,
		p.Endpoints,
		cfg.ClientID,
		state,
		p.OAuthHandler,
		ports,
		func(ctx context.Context, code string, redirectURI string) error {
			if err := p.DataDir.VerifyOAuthState(ctx, state); err != nil {
				return err
			}
			tokens, err := auth.NewTokenByUser(ctx, client, secret.NewString(code), redirectURI)
			if err != nil {
				return err
			}
			// the token may belong to another account now
			return p.setTokens(ctx, *tokens, true)
		},
	)
}

// ExchangeCode finishes an authorization-code flow started elsewhere (the
// redirect was captured by somebody else); the state must match the saved one.
func (p *PredictCtl) ExchangeCode(
	ctx context.Context,
	code string,
	state string,
	redirectURI string,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "ExchangeCode")
	defer func() { logger.Debugf(ctx, "/ExchangeCode: %v", _err) }()

	if state != "" {
		if err := p.DataDir.VerifyOAuthState(ctx, state); err != nil {
			return nil, err
		}
	}
	if redirectURI == "" {
		redirectURI = p.Config(ctx).RedirectURI
	}

	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	body, err := client.ExchangeAuthorizationCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}
	tokens, err := twitch.DecodeTokenResponse(body)
	if err != nil {
		return nil, err
	}
	if err := p.setTokens(ctx, *tokens, true); err != nil {
		return nil, err
	}
	return body, nil
}

func listenPorts(cfg config.Config) ([]uint16, error) {
	if len(cfg.OAuthListenPorts) > 0 {
		return cfg.OAuthListenPorts, nil
	}
	u, err := url.Parse(cfg.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("unable to parse the redirect URI '%s': %w", cfg.RedirectURI, err)
	}
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("unable to get the port from the redirect URI '%s': %w", cfg.RedirectURI, err)
	}
	return []uint16{uint16(port)}, nil
}

// EnsureBroadcasterID resolves the configured channel to its ID once and
// remembers it.
func (p *PredictCtl) EnsureBroadcasterID(ctx context.Context) (_ string, _err error) {
	logger.Debugf(ctx, "EnsureBroadcasterID")
	defer func() { logger.Debugf(ctx, "/EnsureBroadcasterID: %v", _err) }()

	cfg := p.Config(ctx)
	if cfg.BroadcasterID != "" {
		return cfg.BroadcasterID, nil
	}
	if cfg.Channel == "" {
		return "", fmt.Errorf("the channel is not set")
	}

	client, err := p.Client(ctx)
	if err != nil {
		return "", err
	}
	broadcasterID, err := client.FetchUserID(ctx, cfg.Channel)
	if err != nil {
		return "", fmt.Errorf("unable to get the ID of channel '%s': %w", cfg.Channel, err)
	}

	err = p.UpdateConfig(ctx, func(cfg *config.Config) error {
		cfg.BroadcasterID = broadcasterID
		return nil
	})
	if err != nil {
		return "", err
	}
	return broadcasterID, nil
}

// Templates returns the templates database, opening it on first use.
func (p *PredictCtl) Templates(ctx context.Context) (*templates.Store, error) {
	dbFile := p.Config(ctx).TemplatesDB
	if dbFile == "" {
		dbFile = config.NewConfig().TemplatesDB
	}
	return xsync.DoR2(ctx, &p.clientLocker, func() (*templates.Store, error) {
		if p.templates != nil {
			return p.templates, nil
		}
		dbPath, err := p.DataDir.HostPath(dbFile)
		if err != nil {
			return nil, err
		}
		store, err := templates.Open(ctx, dbPath)
		if err != nil {
			return nil, err
		}
		p.templates = store
		return store, nil
	})
}

func (p *PredictCtl) StartPredictionFromTemplate(
	ctx context.Context,
	templateID uint,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "StartPredictionFromTemplate(%d)", templateID)
	defer func() { logger.Debugf(ctx, "/StartPredictionFromTemplate(%d): %v", templateID, _err) }()

	store, err := p.Templates(ctx)
	if err != nil {
		return nil, err
	}
	tpl, err := store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	broadcasterID, err := p.EnsureBroadcasterID(ctx)
	if err != nil {
		return nil, err
	}
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.CreatePrediction(ctx, tpl.Prediction(broadcasterID))
}
