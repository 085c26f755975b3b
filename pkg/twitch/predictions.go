package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

const pathPredictions = "/predictions"

// CreatePrediction starts a prediction; an unset window becomes
// types.DefaultPredictionWindow. The body is returned as is.
func (c *Client) CreatePrediction(
	ctx context.Context,
	prediction types.Prediction,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "CreatePrediction")
	defer func() { logger.Debugf(ctx, "/CreatePrediction: %v", _err) }()

	prediction = prediction.WithDefaults()
	if !c.SkipValidation {
		if err := ValidatePrediction(prediction); err != nil {
			return nil, err
		}
	}
	return c.sendAuthorized(ctx, http.MethodPost, pathPredictions, nil, prediction)
}

func (c *Client) CancelPrediction(
	ctx context.Context,
	broadcasterID string,
	predictionID string,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "CancelPrediction(%s, %s)", broadcasterID, predictionID)
	defer func() { logger.Debugf(ctx, "/CancelPrediction(%s, %s): %v", broadcasterID, predictionID, _err) }()

	return c.sendAuthorized(ctx, http.MethodPatch, pathPredictions, nil, types.PredictionStatusUpdate{
		BroadcasterID: broadcasterID,
		ID:            predictionID,
		Status:        types.PredictionStatusCanceled,
	})
}

func (c *Client) EndPrediction(
	ctx context.Context,
	broadcasterID string,
	predictionID string,
	winningOutcomeID string,
) (_ []byte, _err error) {
	logger.Debugf(ctx, "EndPrediction(%s, %s, %s)", broadcasterID, predictionID, winningOutcomeID)
	defer func() {
		logger.Debugf(ctx, "/EndPrediction(%s, %s, %s): %v", broadcasterID, predictionID, winningOutcomeID, _err)
	}()

	if winningOutcomeID == "" {
		return nil, fmt.Errorf("winning_outcome_id is empty")
	}
	return c.sendAuthorized(ctx, http.MethodPatch, pathPredictions, nil, types.PredictionStatusUpdate{
		BroadcasterID:    broadcasterID,
		ID:               predictionID,
		Status:           types.PredictionStatusResolved,
		WinningOutcomeID: winningOutcomeID,
	})
}

// RecentPredictions is the result of FetchRecentPredictions.
type RecentPredictions struct {
	// Unauthorized is set if Twitch answered 401 and the client is
	// configured with UnauthorizedPolicyPassthrough; Raw is then the
	// response body as is and Predictions is empty.
	Unauthorized bool

	// Raw is the payload to hand to the caller: either the 401 body, or
	// `{"data":[...]}` with the truncated list.
	Raw json.RawMessage

	// Predictions are the entries in the order Twitch returned them.
	Predictions []json.RawMessage
}

// Decode parses the kept entries.
func (r *RecentPredictions) Decode() ([]types.PredictionInfo, error) {
	result := make([]types.PredictionInfo, 0, len(r.Predictions))
	for _, raw := range r.Predictions {
		var p types.PredictionInfo
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, ErrDecode{What: "prediction", Body: raw, Err: err}
		}
		result = append(result, p)
	}
	return result, nil
}

// FetchRecentPredictions returns the first `amount` predictions of the
// broadcaster (Twitch returns the most recent first).
func (c *Client) FetchRecentPredictions(
	ctx context.Context,
	broadcasterID string,
	amount int,
) (_ *RecentPredictions, _err error) {
	logger.Debugf(ctx, "FetchRecentPredictions(%s, %d)", broadcasterID, amount)
	defer func() { logger.Debugf(ctx, "/FetchRecentPredictions(%s, %d): %v", broadcasterID, amount, _err) }()

	if amount < 0 {
		return nil, fmt.Errorf("amount is negative: %d", amount)
	}

	resp, err := c.getPredictions(ctx, broadcasterID, c.RecentPredictionsUnauthorizedPolicy)
	if err != nil {
		return nil, err
	}
	if resp.IsUnauthorized() && c.RecentPredictionsUnauthorizedPolicy == UnauthorizedPolicyPassthrough {
		logger.Debugf(ctx, "passing the 401 through to the caller")
		return &RecentPredictions{
			Unauthorized: true,
			Raw:          resp.Body,
		}, nil
	}
	body, err := resp.Result()
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrDecode{What: "predictions", Body: body, Err: err}
	}

	predictions := envelope.Data
	if len(predictions) > amount {
		predictions = predictions[:amount]
	}
	if len(predictions) == 0 {
		return nil, ErrEmptyResult{What: "predictions"}
	}

	raw, err := json.Marshal(struct {
		Data []json.RawMessage `json:"data"`
	}{Data: predictions})
	if err != nil {
		return nil, fmt.Errorf("unable to serialize the predictions: %w", err)
	}
	return &RecentPredictions{
		Raw:         raw,
		Predictions: predictions,
	}, nil
}

func (c *Client) getPredictions(
	ctx context.Context,
	broadcasterID string,
	policy UnauthorizedPolicy,
) (*Response, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcaster_id is empty")
	}
	build, err := c.apiRequest(
		http.MethodGet,
		pathPredictions,
		url.Values{"broadcaster_id": {broadcasterID}},
		nil,
	)
	if err != nil {
		return nil, err
	}

	switch policy {
	case UnauthorizedPolicyPassthrough:
		return sendWithToken(ctx, c.HTTPClient, build, c.Token.Get(ctx))
	case UnauthorizedPolicyRefresh:
		return c.sendWithRefresh(ctx, build)
	default:
		return nil, fmt.Errorf("unknown 401 policy: %v", policy)
	}
}

// GetLastPrediction returns the most recent prediction whatever its status.
func (c *Client) GetLastPrediction(
	ctx context.Context,
	broadcasterID string,
) (*types.PredictionInfo, error) {
	resp, err := c.getPredictions(ctx, broadcasterID, UnauthorizedPolicyRefresh)
	if err != nil {
		return nil, err
	}
	body, err := resp.Result()
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []types.PredictionInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ErrDecode{What: "predictions", Body: body, Err: err}
	}
	if len(envelope.Data) == 0 {
		return nil, ErrEmptyResult{What: "predictions"}
	}
	return &envelope.Data[0], nil
}

// GetCurrentPrediction returns the most recent prediction if it is still
// ACTIVE or LOCKED (there can be only one such prediction at a time).
func (c *Client) GetCurrentPrediction(
	ctx context.Context,
	broadcasterID string,
) (*types.PredictionInfo, error) {
	p, err := c.GetLastPrediction(ctx, broadcasterID)
	if err != nil {
		return nil, err
	}
	if !p.Status.IsOpen() {
		return nil, ErrNoOpenPrediction{BroadcasterID: broadcasterID}
	}
	return p, nil
}

func (c *Client) CancelCurrentPrediction(
	ctx context.Context,
	broadcasterID string,
) ([]byte, error) {
	p, err := c.GetCurrentPrediction(ctx, broadcasterID)
	if err != nil {
		return nil, fmt.Errorf("unable to get the current prediction: %w", err)
	}
	return c.CancelPrediction(ctx, broadcasterID, p.ID)
}

// EndCurrentPrediction resolves the current prediction with the outcome
// at index outcomeIdx (0-based, in the order the outcomes were created).
func (c *Client) EndCurrentPrediction(
	ctx context.Context,
	broadcasterID string,
	outcomeIdx int,
) ([]byte, error) {
	p, err := c.GetCurrentPrediction(ctx, broadcasterID)
	if err != nil {
		return nil, fmt.Errorf("unable to get the current prediction: %w", err)
	}
	if outcomeIdx < 0 || outcomeIdx >= len(p.Outcomes) {
		return nil, fmt.Errorf(
			"outcome #%d does not exist in prediction '%s' (it has %d outcomes)",
			outcomeIdx, p.ID, len(p.Outcomes),
		)
	}
	return c.EndPrediction(ctx, broadcasterID, p.ID, p.Outcomes[outcomeIdx].ID)
}
