package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

// ExchangeAuthorizationCode exchanges the code received on the OAuth
// redirect for a user access token. The body is returned as is.
func (c *Client) ExchangeAuthorizationCode(
	ctx context.Context,
	code string,
	redirectURI string,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "ExchangeAuthorizationCode")
	defer func() { logger.Debugf(ctx, "/ExchangeAuthorizationCode: %v", _err) }()

	if code == "" {
		return nil, fmt.Errorf("the authorization code is empty")
	}

	form := c.tokenForm("authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.postTokenForm(ctx, form)
}

// FetchClientCredentialsToken requests an app access token.
func (c *Client) FetchClientCredentialsToken(
	ctx context.Context,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "FetchClientCredentialsToken")
	defer func() { logger.Debugf(ctx, "/FetchClientCredentialsToken: %v", _err) }()

	return c.postTokenForm(ctx, c.tokenForm("client_credentials"))
}

// RefreshTokens exchanges a refresh token for a new token pair.
//
// It does not modify the state of the Client, see also the refresher
// used by the authorized operations.
func (c *Client) RefreshTokens(
	ctx context.Context,
	refreshToken string,
) (_ *types.TokenResponse, _err error) {
	logger.Debugf(ctx, "RefreshTokens")
	defer func() { logger.Debugf(ctx, "/RefreshTokens: %v", _err) }()

	if refreshToken == "" {
		return nil, fmt.Errorf("the refresh token is empty")
	}

	form := c.tokenForm("refresh_token")
	form.Set("refresh_token", refreshToken)
	body, err := c.postTokenForm(ctx, form)
	if err != nil {
		return nil, err
	}
	return DecodeTokenResponse(body)
}

// ValidateToken checks the access token currently held by the Client.
func (c *Client) ValidateToken(
	ctx context.Context,
) (_ *types.TokenValidation, _err error) {
	logger.Debugf(ctx, "ValidateToken")
	defer func() { logger.Debugf(ctx, "/ValidateToken: %v", _err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoints.ValidateURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build the request: %w", err)
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "OAuth "+c.Token.Get(ctx))

	resp, err := doRequest(ctx, c.HTTPClient, req)
	if err != nil {
		return nil, err
	}
	body, err := resp.Result()
	if err != nil {
		return nil, err
	}

	var result types.TokenValidation
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, ErrDecode{What: "token validation", Body: body, Err: err}
	}
	return &result, nil
}

func (c *Client) tokenForm(grantType string) url.Values {
	form := url.Values{}
	form.Set("client_id", c.ClientID)
	if clientSecret := c.clientSecret.Get(); clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}
	form.Set("grant_type", grantType)
	return form
}

func (c *Client) postTokenForm(
	ctx context.Context,
	form url.Values,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.Endpoints.TokenURL(),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to build the request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Client-Id", c.ClientID)

	resp, err := doRequest(ctx, c.HTTPClient, req)
	if err != nil {
		return nil, err
	}
	return resp.Result()
}

// DecodeTokenResponse parses a token endpoint body; a body without an
// access token is malformed.
func DecodeTokenResponse(body []byte) (*types.TokenResponse, error) {
	var result types.TokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, ErrDecode{What: "token response", Body: body, Err: err}
	}
	if result.AccessToken == "" {
		return nil, ErrDecode{What: "token response", Body: body, Err: fmt.Errorf("missing access_token")}
	}
	return &result, nil
}
