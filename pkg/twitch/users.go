package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/nicklaw5/helix/v2"
)

// FetchUserData returns the raw "get users" body for the given login.
func (c *Client) FetchUserData(
	ctx context.Context,
	login string,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "FetchUserData(%s)", login)
	defer func() { logger.Debugf(ctx, "/FetchUserData(%s): %v", login, _err) }()

	if login == "" {
		return nil, fmt.Errorf("the login is empty")
	}
	return c.sendAuthorized(ctx, http.MethodGet, "/users", url.Values{"login": {login}}, nil)
}

func (c *Client) GetUser(
	ctx context.Context,
	login string,
) (*helix.User, error) {
	body, err := c.FetchUserData(ctx, login)
	if err != nil {
		return nil, err
	}

	var users helix.ManyUsers
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, ErrDecode{What: "users", Body: body, Err: err}
	}
	switch len(users.Users) {
	case 0:
		return nil, ErrEmptyResult{What: "users"}
	case 1:
	default:
		return nil, fmt.Errorf("expected 1 user with login '%s', but received %d users", login, len(users.Users))
	}
	return &users.Users[0], nil
}

// FetchUserID resolves a login to the user (broadcaster) ID.
func (c *Client) FetchUserID(
	ctx context.Context,
	login string,
) (string, error) {
	user, err := c.GetUser(ctx, login)
	if err != nil {
		return "", fmt.Errorf("unable to query user info: %w", err)
	}
	if user.ID == "" {
		return "", ErrDecode{What: "user ID", Err: fmt.Errorf("the user '%s' has an empty ID", login)}
	}
	return user.ID, nil
}
