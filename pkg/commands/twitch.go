package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

var (
	paramClientID      = ParamSpec{Name: "client_id"}
	paramClientSecret  = ParamSpec{Name: "client_secret"}
	paramAccessToken   = ParamSpec{Name: "access_token"}
	paramRefreshToken  = ParamSpec{Name: "refresh_token", Description: "optional; without it an expired token is replaced with an app token"}
	paramBroadcasterID = ParamSpec{Name: "broadcaster_id"}
)

func withCredentials(params ...ParamSpec) []ParamSpec {
	return append([]ParamSpec{
		paramClientID,
		paramClientSecret,
		paramAccessToken,
		paramRefreshToken,
	}, params...)
}

func init() {
	register(Command{
		Name:        "exchange_code_for_tokens_cmd",
		Description: "exchange the authorization code from the OAuth redirect for tokens",
		Params: []ParamSpec{
			{Name: "code"},
			paramClientID,
			paramClientSecret,
			{Name: "redirect_uri"},
			{Name: "state", Description: "if set, must match the state saved when the flow was started"},
		},
		Handler: exchangeCodeForTokens,
	})
	register(Command{
		Name:        "get_twitch_tokens_cmd",
		Description: "get an app access token (client credentials)",
		Params:      []ParamSpec{paramClientID, paramClientSecret},
		Handler:     getTwitchTokens,
	})
	register(Command{
		Name:        "refresh_tokens_cmd",
		Description: "exchange a refresh token for a new token pair",
		Params:      []ParamSpec{paramClientID, paramClientSecret, paramRefreshToken},
		Handler:     refreshTokens,
	})
	register(Command{
		Name:        "validate_token_cmd",
		Description: "check the access token",
		Params:      []ParamSpec{paramClientID, paramAccessToken},
		Handler:     validateToken,
	})
	register(Command{
		Name:        "get_user_data_cmd",
		Description: "get the user record by login",
		Params:      withCredentials(ParamSpec{Name: "username"}),
		Handler:     getUserData,
	})
	register(Command{
		Name:        "get_user_id_cmd",
		Description: "get the user (broadcaster) ID by login",
		Params:      withCredentials(ParamSpec{Name: "username"}),
		Handler:     getUserID,
	})
	register(Command{
		Name:        "get_channel_information_cmd",
		Description: "get the current game and title of the channel",
		Params:      withCredentials(paramBroadcasterID),
		Handler:     getChannelInformation,
	})
	register(Command{
		Name:        "create_twitch_prediction_cmd",
		Description: "start a prediction",
		Params: withCredentials(
			paramBroadcasterID,
			ParamSpec{Name: "title"},
			ParamSpec{Name: "outcomes", Description: `JSON array or comma-separated list, e.g. ["Yes","No"] or Yes,No`},
			ParamSpec{Name: "prediction_window", Default: "90", Description: "seconds"},
		),
		Handler: createPrediction,
	})
	register(Command{
		Name:        "cancel_prediction_cmd",
		Description: "cancel a prediction, refunding the points",
		Params:      withCredentials(paramBroadcasterID, ParamSpec{Name: "id"}),
		Handler:     cancelPrediction,
	})
	register(Command{
		Name:        "end_prediction_cmd",
		Description: "resolve a prediction",
		Params:      withCredentials(paramBroadcasterID, ParamSpec{Name: "id"}, ParamSpec{Name: "winning_outcome_id"}),
		Handler:     endPrediction,
	})
	register(Command{
		Name:        "get_recent_predictions_cmd",
		Description: "get the most recent predictions",
		Params: withCredentials(
			paramBroadcasterID,
			ParamSpec{Name: "amount", Default: "1"},
			ParamSpec{Name: "on_401", Default: "passthrough", Description: "'passthrough' returns the 401 body as is, 'refresh' refreshes the token"},
		),
		Handler: getRecentPredictions,
	})
	register(Command{
		Name:        "get_current_prediction_cmd",
		Description: "get the active or locked prediction",
		Params:      withCredentials(paramBroadcasterID),
		Handler:     getCurrentPrediction,
	})
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("unable to serialize the result: %w", err)
	}
	return string(b), nil
}

func exchangeCodeForTokens(ctx context.Context, env *Env, p Args) (string, error) {
	code, err := p.Required("code")
	if err != nil {
		return "", err
	}
	if state := p.String("state"); state != "" {
		if env.DataDir == nil {
			return "", fmt.Errorf("the data directory is not set, cannot verify the state")
		}
		if err := env.DataDir.VerifyOAuthState(ctx, state); err != nil {
			return "", err
		}
	}
	redirectURI, err := p.Required("redirect_uri")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	body, err := c.ExchangeAuthorizationCode(ctx, code, redirectURI)
	return string(body), err
}

func getTwitchTokens(ctx context.Context, env *Env, p Args) (string, error) {
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	body, err := c.FetchClientCredentialsToken(ctx)
	return string(body), err
}

func refreshTokens(ctx context.Context, env *Env, p Args) (string, error) {
	refreshToken, err := p.Required("refresh_token")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	tokens, err := c.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	return toJSON(tokens)
}

func validateToken(ctx context.Context, env *Env, p Args) (string, error) {
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	result, err := c.ValidateToken(ctx)
	if err != nil {
		return "", err
	}
	return toJSON(result)
}

func getUserData(ctx context.Context, env *Env, p Args) (string, error) {
	username, err := p.Required("username")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	body, err := c.FetchUserData(ctx, username)
	return string(body), err
}

func getUserID(ctx context.Context, env *Env, p Args) (string, error) {
	username, err := p.Required("username")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	return c.FetchUserID(ctx, username)
}

func getChannelInformation(ctx context.Context, env *Env, p Args) (string, error) {
	broadcasterID, err := p.Required("broadcaster_id")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	info, err := c.GetChannelInformation(ctx, broadcasterID)
	if err != nil {
		return "", err
	}
	return toJSON(info)
}

func createPrediction(ctx context.Context, env *Env, p Args) (string, error) {
	broadcasterID, err := p.Required("broadcaster_id")
	if err != nil {
		return "", err
	}
	title, err := p.Required("title")
	if err != nil {
		return "", err
	}
	outcomes, err := p.StringList("outcomes")
	if err != nil {
		return "", err
	}
	window, err := p.Int("prediction_window")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	body, err := c.CreatePrediction(ctx, types.NewPrediction(broadcasterID, title, outcomes, window))
	return string(body), err
}

func cancelPrediction(ctx context.Context, env *Env, p Args) (string, error) {
	broadcasterID, err := p.Required("broadcaster_id")
	if err != nil {
		return "", err
	}
	id, err := p.Required("id")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	body, err := c.CancelPrediction(ctx, broadcasterID, id)
	return string(body), err
}

func endPrediction(ctx context.Context, env *Env, p Args) (string, error) {
	broadcasterID, err := p.Required("broadcaster_id")
	if err != nil {
		return "", err
	}
	id, err := p.Required("id")
	if err != nil {
		return "", err
	}
	winningOutcomeID, err := p.Required("winning_outcome_id")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	body, err := c.EndPrediction(ctx, broadcasterID, id, winningOutcomeID)
	return string(body), err
}

func getRecentPredictions(ctx context.Context, env *Env, p Args) (string, error) {
	broadcasterID, err := p.Required("broadcaster_id")
	if err != nil {
		return "", err
	}
	amount, err := p.Int("amount")
	if err != nil {
		return "", err
	}
	policy, err := twitch.ParseUnauthorizedPolicy(p.String("on_401"))
	if err != nil {
		return "", ErrInvalidParam{Name: "on_401", Value: p.String("on_401"), Err: err}
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	c.RecentPredictionsUnauthorizedPolicy = policy
	result, err := c.FetchRecentPredictions(ctx, broadcasterID, amount)
	if err != nil {
		return "", err
	}
	return string(result.Raw), nil
}

func getCurrentPrediction(ctx context.Context, env *Env, p Args) (string, error) {
	broadcasterID, err := p.Required("broadcaster_id")
	if err != nil {
		return "", err
	}
	c, err := env.client(p)
	if err != nil {
		return "", err
	}
	prediction, err := c.GetCurrentPrediction(ctx, broadcasterID)
	if err != nil {
		return "", err
	}
	return toJSON(prediction)
}
