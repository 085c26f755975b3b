package twitch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/nicklaw5/helix/v2"
)

// GetChannelInformation returns the current game and title (among other
// things) of the broadcaster's channel.
func (c *Client) GetChannelInformation(
	ctx context.Context,
	broadcasterID string,
) (_ *helix.ChannelInformation, _err error) {
	logger.Debugf(ctx, "GetChannelInformation(%s)", broadcasterID)
	defer func() { logger.Debugf(ctx, "/GetChannelInformation(%s): %v", broadcasterID, _err) }()

	body, err := c.sendAuthorized(
		ctx,
		http.MethodGet,
		"/channels",
		url.Values{"broadcaster_id": {broadcasterID}},
		nil,
	)
	if err != nil {
		return nil, err
	}

	var channels helix.ManyChannelInformation
	if err := json.Unmarshal(body, &channels); err != nil {
		return nil, ErrDecode{What: "channel information", Body: body, Err: err}
	}
	if len(channels.Channels) == 0 {
		return nil, ErrEmptyResult{What: "channels"}
	}
	return &channels.Channels[0], nil
}
