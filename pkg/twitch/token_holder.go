package twitch

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/xsync"
)

// TokenHolder is the single mutable cell with the current access token.
// It may be shared by any amount of concurrent calls.
type TokenHolder struct {
	locker xsync.Mutex
	token  string

	// refreshLocker makes the refreshes single-flight; Get and Set never
	// wait for it.
	refreshLocker xsync.Mutex
}

func NewTokenHolder(accessToken string) *TokenHolder {
	return &TokenHolder{token: accessToken}
}

func (h *TokenHolder) Get(ctx context.Context) string {
	return xsync.DoR1(ctx, &h.locker, func() string {
		return h.token
	})
}

func (h *TokenHolder) Set(ctx context.Context, accessToken string) {
	h.locker.Do(ctx, func() {
		h.token = accessToken
	})
}

// refresh replaces staleToken using refreshFn. If the held token is no
// longer staleToken (somebody else already refreshed it while we were
// waiting for the lock), refreshFn is not called and the current token
// is returned.
func (h *TokenHolder) refresh(
	ctx context.Context,
	staleToken string,
	refreshFn Refresher,
) (string, error) {
	return xsync.DoR2(ctx, &h.refreshLocker, func() (string, error) {
		if token := h.Get(ctx); token != staleToken {
			logger.Debugf(ctx, "the access token was already refreshed by a concurrent call")
			return token, nil
		}
		newToken, err := refreshFn(ctx)
		if err != nil {
			return "", err
		}
		h.Set(ctx, newToken)
		return newToken, nil
	})
}
