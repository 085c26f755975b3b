package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/zap"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/config"
	"github.com/xaionaro-go/predictctl/pkg/observability"
	"github.com/xaionaro-go/predictctl/pkg/predictctl"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
)

type fakeTwitch struct {
	*httptest.Server

	locker     sync.Mutex
	validToken string
	queries    []string
}

func newFakeTwitch(t *testing.T, validToken string) *fakeTwitch {
	f := &fakeTwitch{validToken: validToken}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeTwitch) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.locker.Lock()
	defer f.locker.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/oauth2/token" {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("refresh_token") != "r1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.validToken = "tok2"
		fmt.Fprint(w, `{"access_token":"tok2","refresh_token":"r2","expires_in":3600,"token_type":"bearer"}`)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.validToken {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`)
		return
	}
	if r.Method != http.MethodGet || r.URL.Path != "/helix/predictions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.queries = append(f.queries, r.URL.RawQuery)
	fmt.Fprint(w, `{"data":[{"id":"p2","status":"ACTIVE"},{"id":"p1","status":"RESOLVED"}]}`)
}

// setupCLI writes the settings into a temporary data directory and points
// the CLI at the fake.
func setupCLI(t *testing.T, f *fakeTwitch, accessToken string) string {
	ctx := context.Background()
	dataDirPath := t.TempDir()
	dir, err := appdata.Open(ctx, dataDirPath)
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Channel = "streamer"
	cfg.ClientID = "abc"
	cfg.ClientSecret = secret.NewString("shh")
	cfg.AccessToken = secret.NewString(accessToken)
	cfg.RefreshToken = secret.NewString("r1")
	cfg.BroadcasterID = "42"
	require.NoError(t, config.WriteConfig(ctx, dir, cfg))

	predictCtlOptions = []predictctl.Option{
		predictctl.OptionHTTPClient(f.Client()),
		predictctl.OptionEndpoints(twitch.Endpoints{
			AuthBaseURL: f.URL + "/oauth2",
			APIBaseURL:  f.URL + "/helix",
		}),
	}
	t.Cleanup(func() { predictCtlOptions = nil })
	return dataDirPath
}

func execute(t *testing.T, ctx context.Context, args ...string) string {
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetErr(&out)
	Root.SetArgs(args)
	t.Cleanup(func() {
		Root.SetOut(nil)
		Root.SetErr(nil)
		Root.SetArgs(nil)
	})
	require.NoError(t, Root.ExecuteContext(ctx))
	require.Nil(t, instance.Load())
	return out.String()
}

func TestInvokeGetRecentPredictions(t *testing.T) {
	f := newFakeTwitch(t, "tok1")
	dataDir := setupCLI(t, f, "tok1")

	out := execute(t, context.Background(),
		"--data-dir", dataDir,
		"invoke", "get_recent_predictions_cmd", "amount=1",
	)
	require.Equal(t, `{"data":[{"id":"p2","status":"ACTIVE"}]}`+"\n", out)
	require.Equal(t, []string{"broadcaster_id=42"}, f.queries)
}

func TestInvokeSavesRefreshedTokens(t *testing.T) {
	f := newFakeTwitch(t, "tok2")
	dataDir := setupCLI(t, f, "expired")

	// the logger of main: every debug line asks SecretWords for the secrets
	l := zap.Default().WithPreHooks(
		observability.NewSecretValuesFilter(observability.SecretsProviderFunc(SecretWords)),
	)
	ctx := logger.CtxWithLogger(context.Background(), l)

	out := execute(t, ctx,
		"--data-dir", dataDir,
		"--log-level", "debug",
		"invoke", "get_recent_predictions_cmd", "on_401=refresh",
	)
	require.Equal(t, `{"data":[{"id":"p2","status":"ACTIVE"}]}`+"\n", out)

	dir, err := appdata.Open(context.Background(), dataDir)
	require.NoError(t, err)
	cfg := config.NewConfig()
	require.NoError(t, config.ReadConfig(context.Background(), dir, &cfg))
	require.Equal(t, "tok2", cfg.AccessToken.Get())
	require.Equal(t, "r2", cfg.RefreshToken.Get())
}

func TestListCommands(t *testing.T) {
	out := execute(t, context.Background(), "commands")
	require.Contains(t, out, "get_recent_predictions_cmd: ")
	require.Contains(t, out, "\tbroadcaster_id")
}

func TestRootSubcommands(t *testing.T) {
	for _, path := range [][]string{
		{"version"},
		{"commands"},
		{"invoke"},
		{"login"},
		{"user"},
		{"config", "get"},
		{"config", "set"},
		{"import-legacy"},
		{"templates", "list"},
		{"templates", "add"},
		{"templates", "remove"},
		{"templates", "start"},
	} {
		cmd, rest, err := Root.Find(path)
		require.NoError(t, err, path)
		require.Empty(t, rest, path)
		require.Equal(t, path[len(path)-1], cmd.Name(), path)
	}
}
