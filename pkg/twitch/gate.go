package twitch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// RequestBuilder builds the outbound request for the given access token.
// It is called once per attempt, so it must not consume anything that
// cannot be rebuilt (e.g. a one-shot body reader).
type RequestBuilder func(ctx context.Context, accessToken string) (*http.Request, error)

// Refresher obtains a new access token.
type Refresher func(ctx context.Context) (string, error)

// SendWithRefresh sends the request built for the current token. On a 401
// it refreshes the token exactly once and sends the request again; the
// second response is returned as is, whatever its status.
//
// Transport errors are never retried, and a failed refresh is returned
// as ErrRefreshFailed without re-sending anything.
func SendWithRefresh(
	ctx context.Context,
	doer HTTPDoer,
	token *TokenHolder,
	buildRequest RequestBuilder,
	refresh Refresher,
) (_ret *Response, _err error) {
	logger.Tracef(ctx, "SendWithRefresh")
	defer func() { logger.Tracef(ctx, "/SendWithRefresh: %v", _err) }()

	usedToken := token.Get(ctx)
	resp, err := sendWithToken(ctx, doer, buildRequest, usedToken)
	if err != nil {
		return nil, err
	}
	if !resp.IsUnauthorized() {
		return resp, nil
	}

	logger.Debugf(ctx, "received 401, refreshing the access token")
	newToken, err := token.refresh(ctx, usedToken, refresh)
	if err != nil {
		return nil, ErrRefreshFailed{Err: err}
	}

	return sendWithToken(ctx, doer, buildRequest, newToken)
}

func sendWithToken(
	ctx context.Context,
	doer HTTPDoer,
	buildRequest RequestBuilder,
	accessToken string,
) (*Response, error) {
	req, err := buildRequest(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("unable to build the request: %w", err)
	}
	return doRequest(ctx, doer, req)
}
