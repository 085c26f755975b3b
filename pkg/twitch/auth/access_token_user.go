package auth

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

// NewTokenByUser exchanges the code received on redirectURI for a user
// access token and a refresh token.
func NewTokenByUser(
	ctx context.Context,
	client *twitch.Client,
	clientCode secret.String,
	redirectURI string,
) (_ *types.TokenResponse, _err error) {
	logger.Debugf(ctx, "NewTokenByUser")
	defer func() { logger.Debugf(ctx, "/NewTokenByUser: %v", _err) }()

	if clientCode.Get() == "" {
		return nil, fmt.Errorf("internal error: ClientCode is empty")
	}

	logger.Debugf(ctx, "requesting user access token...")
	body, err := client.ExchangeAuthorizationCode(ctx, clientCode.Get(), redirectURI)
	if observability.IsOnInsecureDebug(ctx) {
		logger.Debugf(ctx, "requesting user access token result: %s %v", body, err)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get user access token: %w", err)
	}

	tokens, err := twitch.DecodeTokenResponse(body)
	if err != nil {
		return nil, fmt.Errorf("unable to get user access token: %w", err)
	}
	if tokens.RefreshToken == "" {
		logger.Warnf(ctx, "received a user access token without a refresh token")
	}
	return tokens, nil
}
