package auth

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
)

func NewTokenByApp(
	ctx context.Context,
	client *twitch.Client,
) (_ secret.String, _err error) {
	logger.Debugf(ctx, "NewTokenByApp")
	defer func() { logger.Debugf(ctx, "/NewTokenByApp: %v", _err) }()

	body, err := client.FetchClientCredentialsToken(ctx)
	if err != nil {
		return secret.NewString(""), fmt.Errorf("unable to get app access token: %w", err)
	}

	tokens, err := twitch.DecodeTokenResponse(body)
	if err != nil {
		return secret.NewString(""), fmt.Errorf("unable to get app access token: %w", err)
	}
	return secret.NewString(tokens.AccessToken), nil
}
