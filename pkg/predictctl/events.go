package predictctl

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/eventbus"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

// EventTokensRefreshed is sent every time the client obtained a new
// access token on its own (a 401 followed by a refresh).
type EventTokensRefreshed struct {
	Tokens types.TokenResponse
}

// EventConfigSaved is sent after the settings file is rewritten.
type EventConfigSaved struct{}

func sendEvent[E any](
	ctx context.Context,
	bus *eventbus.EventBus,
	event E,
) {
	logger.Debugf(ctx, "sendEvent(ctx, %T)", event)
	result := eventbus.SendEvent(ctx, bus, event)
	logger.Debugf(ctx, "/sendEvent(ctx, %T): %#+v", event, result)
}

// startTokensListener persists every EventTokensRefreshed until Close.
func (p *PredictCtl) startTokensListener(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	listenCtx, cancelFn := context.WithCancel(ctx)
	sub := eventbus.Subscribe[EventTokensRefreshed](
		listenCtx,
		p.EventBus,
		eventbus.OptionQueueSize(16),
	)
	if sub == nil {
		cancelFn()
		return fmt.Errorf("unable to subscribe to %T", EventTokensRefreshed{})
	}

	done := make(chan struct{})
	p.stopListener = func() {
		cancelFn()
		<-done
	}
	eventChan := sub.EventChan()
	observability.Go(listenCtx, func(listenCtx context.Context) {
		defer close(done)
		defer sub.Finish(ctx)
		for {
			select {
			case <-listenCtx.Done():
				// tokens that were already delivered are still saved
				for {
					select {
					case ev, ok := <-eventChan:
						if !ok {
							return
						}
						p.saveRefreshedTokens(ctx, ev)
					default:
						return
					}
				}
			case ev, ok := <-eventChan:
				if !ok {
					return
				}
				p.saveRefreshedTokens(ctx, ev)
			}
		}
	})
	return nil
}
