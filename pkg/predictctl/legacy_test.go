package predictctl

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/predictctl/pkg/appdata"
	"github.com/xaionaro-go/predictctl/pkg/config"
)

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	f := newFakeTwitch(t, "")
	p, dir := newTestPredictCtl(t, f, func(cfg *config.Config) {
		cfg.RecentPredictionsOn401 = "refresh"
	})

	legacy := appdata.New(memfs.New())
	require.NoError(t, legacy.WriteFile(".env", []byte(
		"TWITCH_CLIENT_ID=legacy-id\n"+
			"TWITCH_CLIENT_SECRET=legacy-secret\n"+
			"TWITCH_CHANNEL_NAME=legacy-channel\n"+
			"OAUTH_REDIRECT_URI=http://localhost:1420/\n"+
			"TWITCH_ACCESS_TOKEN=legacy-token\n",
	)))
	require.NoError(t, legacy.WriteFile("my_predictions.json", []byte(
		`[{"id":1,"title":"Will we win?","options":["Yes","No"],"duration":60}]`,
	)))

	result, err := p.ImportLegacy(ctx, legacy)
	require.NoError(t, err)
	require.Equal(t, LegacyImportResult{Settings: true, Templates: 1}, result)

	cfg := readConfig(t, dir)
	require.Equal(t, "legacy-id", cfg.ClientID)
	require.Equal(t, "legacy-channel", cfg.Channel)
	require.Equal(t, "legacy-token", cfg.AccessToken.Get())
	require.Equal(t, "refresh", cfg.RecentPredictionsOn401)

	ports, err := listenPorts(cfg)
	require.NoError(t, err)
	require.Equal(t, []uint16{1420}, ports)

	store, err := p.Templates(ctx)
	require.NoError(t, err)
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 60, list[0].Duration)
}

func TestImportLegacyNothing(t *testing.T) {
	f := newFakeTwitch(t, "")
	p, _ := newTestPredictCtl(t, f, nil)

	result, err := p.ImportLegacy(context.Background(), appdata.New(memfs.New()))
	require.NoError(t, err)
	require.Equal(t, LegacyImportResult{}, result)
}
