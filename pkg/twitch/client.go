package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
	"github.com/xaionaro-go/xsync"
)

// UnauthorizedPolicy selects how FetchRecentPredictions treats a 401.
type UnauthorizedPolicy int

const (
	// UnauthorizedPolicyPassthrough returns the 401 body as a successful
	// result (RecentPredictions.Unauthorized is set), leaving the
	// refresh-and-retry to the caller.
	UnauthorizedPolicyPassthrough = UnauthorizedPolicy(iota)

	// UnauthorizedPolicyRefresh sends the request through SendWithRefresh,
	// as every other authorized operation does.
	UnauthorizedPolicyRefresh
)

func (p UnauthorizedPolicy) String() string {
	switch p {
	case UnauthorizedPolicyPassthrough:
		return "passthrough"
	case UnauthorizedPolicyRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("unknown_policy_%d", int(p))
	}
}

func ParseUnauthorizedPolicy(s string) (UnauthorizedPolicy, error) {
	switch s {
	case "", "passthrough":
		return UnauthorizedPolicyPassthrough, nil
	case "refresh":
		return UnauthorizedPolicyRefresh, nil
	default:
		return UnauthorizedPolicyPassthrough, fmt.Errorf("unknown 401 policy '%s'", s)
	}
}

type Client struct {
	HTTPClient HTTPDoer
	Endpoints  Endpoints
	ClientID   string
	Token      *TokenHolder

	// RecentPredictionsUnauthorizedPolicy is UnauthorizedPolicyPassthrough
	// by default to keep the historical behavior of the command.
	RecentPredictionsUnauthorizedPolicy UnauthorizedPolicy

	// SkipValidation disables the local checks of CreatePrediction.
	SkipValidation bool

	clientSecret secret.String
	refresher    Refresher

	locker            xsync.Mutex
	refreshToken      secret.String
	onTokensRefreshed []func(context.Context, types.TokenResponse)
	refreshedTokens   []types.TokenResponse
}

type Option func(*Client)

func OptionHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.HTTPClient = doer
	}
}

func OptionEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		c.Endpoints = endpoints
	}
}

// OptionRefresher replaces the default refresh procedure (refresh_token
// grant, or client_credentials if there is no refresh token).
func OptionRefresher(refresher Refresher) Option {
	return func(c *Client) {
		c.refresher = refresher
	}
}

func OptionTokenHolder(token *TokenHolder) Option {
	return func(c *Client) {
		c.Token = token
	}
}

func New(
	creds types.Credentials,
	opts ...Option,
) *Client {
	c := &Client{
		HTTPClient:   http.DefaultClient,
		Endpoints:    DefaultEndpoints(),
		ClientID:     creds.ClientID,
		clientSecret: creds.ClientSecret,
		refreshToken: creds.RefreshToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Token == nil {
		c.Token = NewTokenHolder(creds.AccessToken.Get())
	}
	if c.refresher == nil {
		c.refresher = c.refreshAccessToken
	}
	return c
}

// OnTokensRefreshed registers a callback called after every successful
// refresh performed by the default refresher; this is the place to
// persist the new tokens.
func (c *Client) OnTokensRefreshed(callback func(context.Context, types.TokenResponse)) {
	c.locker.Do(context.Background(), func() {
		c.onTokensRefreshed = append(c.onTokensRefreshed, callback)
	})
}

func (c *Client) GetAccessToken(ctx context.Context) string {
	return c.Token.Get(ctx)
}

func (c *Client) SetAccessToken(ctx context.Context, accessToken string) {
	c.Token.Set(ctx, accessToken)
}

func (c *Client) GetRefreshToken(ctx context.Context) string {
	return xsync.DoR1(ctx, &c.locker, func() string {
		return c.refreshToken.Get()
	})
}

func (c *Client) SetRefreshToken(ctx context.Context, refreshToken string) {
	c.locker.Do(ctx, func() {
		c.refreshToken.Set(refreshToken)
	})
}

func (c *Client) refreshAccessToken(ctx context.Context) (_ string, _err error) {
	logger.Debugf(ctx, "refreshAccessToken")
	defer func() { logger.Debugf(ctx, "/refreshAccessToken: %v", _err) }()

	var tokens *types.TokenResponse
	refreshToken := c.GetRefreshToken(ctx)
	if refreshToken == "" {
		// app access tokens come without a refresh token, requesting a new one instead
		body, err := c.FetchClientCredentialsToken(ctx)
		if err != nil {
			return "", err
		}
		tokens, err = DecodeTokenResponse(body)
		if err != nil {
			return "", err
		}
	} else {
		var err error
		tokens, err = c.RefreshTokens(ctx, refreshToken)
		if err != nil {
			return "", err
		}
		if tokens.RefreshToken != "" {
			c.SetRefreshToken(ctx, tokens.RefreshToken)
		}
	}

	// the callbacks are called by sendWithRefresh, when the new token is
	// already in place and nothing is locked
	c.locker.Do(ctx, func() {
		c.refreshedTokens = append(c.refreshedTokens, *tokens)
	})
	return tokens.AccessToken, nil
}

func (c *Client) sendWithRefresh(
	ctx context.Context,
	build RequestBuilder,
) (*Response, error) {
	defer c.notifyTokensRefreshed(ctx)
	return SendWithRefresh(ctx, c.HTTPClient, c.Token, build, c.refresher)
}

func (c *Client) notifyTokensRefreshed(ctx context.Context) {
	var (
		refreshed []types.TokenResponse
		callbacks []func(context.Context, types.TokenResponse)
	)
	c.locker.Do(ctx, func() {
		refreshed, c.refreshedTokens = c.refreshedTokens, nil
		callbacks = append(callbacks, c.onTokensRefreshed...)
	})
	for _, tokens := range refreshed {
		for _, callback := range callbacks {
			callback(ctx, tokens)
		}
	}
}

// apiRequest returns a builder of an authorized Helix request. The JSON
// body (if any) is serialized once here, every built request gets its
// own reader over it.
func (c *Client) apiRequest(
	method string,
	path string,
	query url.Values,
	body any,
) (RequestBuilder, error) {
	u := c.Endpoints.API(path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("unable to serialize the request body: %w", err)
		}
	}

	return func(ctx context.Context, accessToken string) (*http.Request, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Client-Id", c.ClientID)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}, nil
}

// sendAuthorized sends the request through the refresh gate and maps the outcome.
func (c *Client) sendAuthorized(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body any,
) ([]byte, error) {
	build, err := c.apiRequest(method, path, query, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendWithRefresh(ctx, build)
	if err != nil {
		return nil, err
	}
	return resp.Result()
}
