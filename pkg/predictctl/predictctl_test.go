package predictctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/zap"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/config"
	"github.com/xaionaro-go/predictctl/pkg/oauthhandler"
	"github.com/xaionaro-go/predictctl/pkg/observability"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/templates"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

type fakeTwitch struct {
	*httptest.Server

	locker      sync.Mutex
	validToken  string
	created     []map[string]any
	tokenGrants []string
}

func newFakeTwitch(t *testing.T, validToken string) *fakeTwitch {
	f := &fakeTwitch{validToken: validToken}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeTwitch) endpoints() twitch.Endpoints {
	return twitch.Endpoints{
		AuthBaseURL: f.URL + "/oauth2",
		APIBaseURL:  f.URL + "/helix",
	}
}

func (f *fakeTwitch) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.locker.Lock()
	defer f.locker.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/oauth2/token" {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		grantType := r.PostForm.Get("grant_type")
		f.tokenGrants = append(f.tokenGrants, grantType)
		switch grantType {
		case "client_credentials":
			f.validToken = "app-token"
			fmt.Fprint(w, `{"access_token":"app-token","expires_in":5000,"token_type":"bearer"}`)
		case "authorization_code":
			if r.PostForm.Get("code") != "the-code" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"status":400,"message":"Invalid authorization code"}`)
				return
			}
			f.validToken = "user-token"
			fmt.Fprint(w, `{"access_token":"user-token","refresh_token":"user-refresh","token_type":"bearer"}`)
		case "refresh_token":
			f.validToken = "refreshed-token"
			fmt.Fprint(w, `{"access_token":"refreshed-token","refresh_token":"refreshed-refresh","token_type":"bearer"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.validToken {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/helix/users":
		fmt.Fprintf(w, `{"data":[{"id":"42","login":%q}]}`, r.URL.Query().Get("login"))
	case r.Method == http.MethodPost && r.URL.Path == "/helix/predictions":
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.created = append(f.created, payload)
		fmt.Fprint(w, `{"data":[{"id":"p1"}]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestPredictCtl(
	t *testing.T,
	f *fakeTwitch,
	setup func(cfg *config.Config),
	opts ...Option,
) (*PredictCtl, *appdata.Dir) {
	ctx := context.Background()
	dir, err := appdata.Open(ctx, t.TempDir())
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Channel = "streamer"
	cfg.ClientID = "abc"
	cfg.ClientSecret = secret.NewString("shh")
	if setup != nil {
		setup(&cfg)
	}
	require.NoError(t, config.WriteConfig(ctx, dir, cfg))

	opts = append([]Option{
		OptionHTTPClient(f.Client()),
		OptionEndpoints(f.endpoints()),
	}, opts...)
	p, err := New(ctx, dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, dir
}

func readConfig(t *testing.T, dir *appdata.Dir) config.Config {
	cfg := config.NewConfig()
	require.NoError(t, config.ReadConfig(context.Background(), dir, &cfg))
	return cfg
}

func TestEnsureTokensNotInitialized(t *testing.T) {
	f := newFakeTwitch(t, "")
	p, _ := newTestPredictCtl(t, f, func(cfg *config.Config) {
		cfg.ClientSecret = secret.NewString("")
	})
	require.ErrorIs(t, p.EnsureTokens(context.Background()), ErrNotInitialized)
}

func TestEnsureTokensApp(t *testing.T) {
	ctx := context.Background()
	f := newFakeTwitch(t, "")
	p, dir := newTestPredictCtl(t, f, func(cfg *config.Config) {
		cfg.AuthType = config.AuthTypeApp
	})

	require.NoError(t, p.EnsureTokens(ctx))
	require.Equal(t, "app-token", readConfig(t, dir).AccessToken.Get())

	// already have a token
	require.NoError(t, p.EnsureTokens(ctx))
	require.Equal(t, []string{"client_credentials"}, f.tokenGrants)

	client, err := p.Client(ctx)
	require.NoError(t, err)
	require.Equal(t, "app-token", client.GetAccessToken(ctx))
}

func TestEnsureTokensUser(t *testing.T) {
	ctx := context.Background()
	f := newFakeTwitch(t, "")

	var handledArgs []oauthhandler.OAuthHandlerArgument
	handler := func(ctx context.Context, arg oauthhandler.OAuthHandlerArgument) error {
		handledArgs = append(handledArgs, arg)
		u, err := url.Parse(arg.AuthURL)
		if err != nil {
			return err
		}
		code, err := oauthhandler.CallbackResult{
			Code:  "the-code",
			State: u.Query().Get("state"),
		}.Verify(arg.State)
		if err != nil {
			return err
		}
		return arg.ExchangeFn(ctx, code)
	}

	p, dir := newTestPredictCtl(t, f, func(cfg *config.Config) {
		cfg.BroadcasterID = "stale-id"
	}, OptionOAuthHandler(handler))

	require.NoError(t, p.EnsureTokens(ctx))
	require.Len(t, handledArgs, 1)
	require.Equal(t, uint16(3000), handledArgs[0].ListenPort)

	cfg := readConfig(t, dir)
	require.Equal(t, "user-token", cfg.AccessToken.Get())
	require.Equal(t, "user-refresh", cfg.RefreshToken.Get())
	require.Empty(t, cfg.BroadcasterID)

	exists, err := dir.Exists(appdata.OAuthStateFile)
	require.NoError(t, err)
	require.False(t, exists)

	broadcasterID, err := p.EnsureBroadcasterID(ctx)
	require.NoError(t, err)
	require.Equal(t, "42", broadcasterID)
	require.Equal(t, "42", readConfig(t, dir).BroadcasterID)
	require.True(t, p.Config(ctx).IsReady())
}

func TestExchangeCodeChecksState(t *testing.T) {
	ctx := context.Background()
	f := newFakeTwitch(t, "")
	p, dir := newTestPredictCtl(t, f, nil)

	_, err := p.ExchangeCode(ctx, "the-code", "no-flow-in-progress", "")
	require.ErrorIs(t, err, appdata.ErrOAuthStateMismatch)

	require.NoError(t, dir.SaveOAuthState(ctx, "xyz"))
	body, err := p.ExchangeCode(ctx, "the-code", "xyz", "")
	require.NoError(t, err)
	require.Contains(t, string(body), "user-token")
	require.Equal(t, "user-token", readConfig(t, dir).AccessToken.Get())
}

func TestStartPredictionFromTemplatePersistsRefreshedTokens(t *testing.T) {
	ctx := context.Background()
	f := newFakeTwitch(t, "refreshed-token")
	p, dir := newTestPredictCtl(t, f, func(cfg *config.Config) {
		cfg.AccessToken = secret.NewString("expired-token")
		cfg.RefreshToken = secret.NewString("old-refresh")
		cfg.BroadcasterID = "42"
	})

	store, err := p.Templates(ctx)
	require.NoError(t, err)
	tpl, err := store.Add(ctx, templates.Template{Title: "Will we win?", Outcomes: []string{"Yes", "No"}})
	require.NoError(t, err)

	body, err := p.StartPredictionFromTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, `{"data":[{"id":"p1"}]}`, string(body))

	require.Len(t, f.created, 1)
	require.Equal(t, "42", f.created[0]["broadcaster_id"])
	require.Equal(t, float64(90), f.created[0]["prediction_window"])
	require.Equal(t, []string{"refresh_token"}, f.tokenGrants)

	// the refreshed tokens are saved by the events listener
	require.Eventually(t, func() bool {
		return p.Config(ctx).AccessToken.Get() == "refreshed-token"
	}, 5*time.Second, 10*time.Millisecond)
	cfg := readConfig(t, dir)
	require.Equal(t, "refreshed-token", cfg.AccessToken.Get())
	require.Equal(t, "refreshed-refresh", cfg.RefreshToken.Get())
	require.Contains(t, p.SecretWords(), "refreshed-token")

	_, err = p.StartPredictionFromTemplate(ctx, tpl.ID+100)
	require.ErrorIs(t, err, templates.ErrNotFound)
}

func TestListenPorts(t *testing.T) {
	cfg := config.NewConfig()
	cfg.OAuthListenPorts = nil
	cfg.RedirectURI = "http://localhost:8123/callback"
	ports, err := listenPorts(cfg)
	require.NoError(t, err)
	require.Equal(t, []uint16{8123}, ports)

	cfg.RedirectURI = "http://localhost/callback"
	_, err = listenPorts(cfg)
	require.Error(t, err)
}

func TestCloseSavesDeliveredTokens(t *testing.T) {
	ctx := context.Background()
	f := newFakeTwitch(t, "")
	p, dir := newTestPredictCtl(t, f, nil)

	sendEvent(ctx, p.EventBus, EventTokensRefreshed{Tokens: types.TokenResponse{
		AccessToken:  "pushed-token",
		RefreshToken: "pushed-refresh",
	}})
	require.NoError(t, p.Close())

	cfg := readConfig(t, dir)
	require.Equal(t, "pushed-token", cfg.AccessToken.Get())
	require.Equal(t, "pushed-refresh", cfg.RefreshToken.Get())

	// no listener anymore
	sendEvent(ctx, p.EventBus, EventTokensRefreshed{Tokens: types.TokenResponse{AccessToken: "late-token"}})
	require.Equal(t, "pushed-token", readConfig(t, dir).AccessToken.Get())
}

func TestUpdateConfigWithSecretFilteringLogger(t *testing.T) {
	f := newFakeTwitch(t, "")
	p, dir := newTestPredictCtl(t, f, nil)
	require.ElementsMatch(t, []string{"shh"}, p.SecretWords())

	l := zap.Default().WithLevel(logger.LevelDebug).WithPreHooks(
		observability.NewSecretValuesFilter(observability.SecretsProviderFunc(p.SecretWords)),
	)
	ctx := logger.CtxWithLogger(context.Background(), l)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.UpdateConfig(ctx, func(cfg *config.Config) error {
			logger.Debugf(ctx, "replacing the access token of %s", cfg.Channel)
			cfg.AccessToken = secret.NewString("new-token")
			return nil
		})
	}()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("UpdateConfig did not return")
	}

	require.Equal(t, "new-token", readConfig(t, dir).AccessToken.Get())
	require.ElementsMatch(t, []string{"shh", "new-token"}, p.SecretWords())
}
