package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/nicklaw5/helix/v2"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/predictctl/pkg/oauthhandler"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

func TestGetAuthorizationURL(t *testing.T) {
	authURL := GetAuthorizationURL(
		twitch.DefaultEndpoints(),
		&helix.AuthorizationURLParams{
			ResponseType: "code",
			Scopes:       Scopes,
			State:        "xyz",
			ForceVerify:  true,
		},
		"abc",
		RedirectURI(3000),
	)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	require.Equal(t, "id.twitch.tv", u.Host)
	require.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "abc", q.Get("client_id"))
	require.Equal(t, "http://localhost:3000/", q.Get("redirect_uri"))
	require.Equal(t, "channel:read:predictions channel:manage:predictions", q.Get("scope"))
	require.Equal(t, "xyz", q.Get("state"))
	require.Equal(t, "true", q.Get("force_verify"))
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestNewClientCodeFirstPortWins(t *testing.T) {
	ctx := context.Background()

	handler := func(ctx context.Context, arg oauthhandler.OAuthHandlerArgument) error {
		u, err := url.Parse(arg.AuthURL)
		require.NoError(t, err)
		require.Equal(t, "xyz", u.Query().Get("state"))
		require.Equal(t, "xyz", arg.State)

		switch arg.ListenPort {
		case 3000:
			return fmt.Errorf("address already in use")
		case 3001:
			return arg.ExchangeFn(ctx, "the-code")
		default:
			<-ctx.Done()
			return ctx.Err()
		}
	}

	var (
		locker       sync.Mutex
		codes        []string
		redirectURIs []string
	)
	err := NewClientCode(
		ctx,
		twitch.DefaultEndpoints(),
		"abc",
		"xyz",
		handler,
		[]uint16{3000, 3001, 3002, 3001},
		func(ctx context.Context, code string, redirectURI string) error {
			locker.Lock()
			defer locker.Unlock()
			codes = append(codes, code)
			redirectURIs = append(redirectURIs, redirectURI)
			return nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"the-code"}, codes)
	require.Equal(t, []string{"http://localhost:3001/"}, redirectURIs)
}

func TestNewClientCodeAllPortsFail(t *testing.T) {
	ctx := context.Background()

	handler := func(ctx context.Context, arg oauthhandler.OAuthHandlerArgument) error {
		return fmt.Errorf("port %d is busy", arg.ListenPort)
	}
	err := NewClientCode(
		ctx,
		twitch.DefaultEndpoints(),
		"abc",
		"xyz",
		handler,
		[]uint16{3000, 3001},
		func(ctx context.Context, code string, redirectURI string) error {
			t.Fatal("must not be called")
			return nil
		},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "port 3000 is busy")
	require.Contains(t, err.Error(), "port 3001 is busy")

	err = NewClientCode(ctx, twitch.DefaultEndpoints(), "abc", "xyz", handler, nil, nil)
	require.Error(t, err)
}

func newTokenServer(t *testing.T) (*httptest.Server, *[]url.Values) {
	var (
		locker sync.Mutex
		forms  []url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		locker.Lock()
		forms = append(forms, r.PostForm)
		locker.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			fmt.Fprint(w, `{"access_token":"user-access","refresh_token":"user-refresh","expires_in":14000,"token_type":"bearer"}`)
		case "client_credentials":
			fmt.Fprint(w, `{"access_token":"app-access","expires_in":5000,"token_type":"bearer"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"status":400,"message":"unsupported grant_type"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &forms
}

func newClient(srv *httptest.Server) *twitch.Client {
	return twitch.New(types.Credentials{
		ClientID:     "abc",
		ClientSecret: secret.NewString("shh"),
	}, twitch.OptionHTTPClient(srv.Client()), twitch.OptionEndpoints(twitch.Endpoints{
		AuthBaseURL: srv.URL,
		APIBaseURL:  srv.URL,
	}))
}

func TestNewTokenByUser(t *testing.T) {
	ctx := context.Background()
	srv, forms := newTokenServer(t)

	tokens, err := NewTokenByUser(ctx, newClient(srv), secret.NewString("the-code"), "http://localhost:3000/")
	require.NoError(t, err)
	require.Equal(t, "user-access", tokens.AccessToken)
	require.Equal(t, "user-refresh", tokens.RefreshToken)

	require.Len(t, *forms, 1)
	require.Equal(t, "the-code", (*forms)[0].Get("code"))
	require.Equal(t, "http://localhost:3000/", (*forms)[0].Get("redirect_uri"))

	_, err = NewTokenByUser(ctx, newClient(srv), secret.NewString(""), "http://localhost:3000/")
	require.Error(t, err)
	require.Len(t, *forms, 1)
}

func TestNewTokenByApp(t *testing.T) {
	ctx := context.Background()
	srv, forms := newTokenServer(t)

	token, err := NewTokenByApp(ctx, newClient(srv))
	require.NoError(t, err)
	require.Equal(t, "app-access", token.Get())
	require.Len(t, *forms, 1)
	require.Equal(t, "client_credentials", (*forms)[0].Get("grant_type"))
	require.Equal(t, "shh", (*forms)[0].Get("client_secret"))
}
