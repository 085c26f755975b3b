package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/nicklaw5/helix/v2"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/predictctl/pkg/oauthhandler"
	"github.com/xaionaro-go/predictctl/pkg/twitch"
	"github.com/xaionaro-go/xsync"
)

type OAuthHandler func(context.Context, oauthhandler.OAuthHandlerArgument) error

// OnNewClientCode receives the code together with the redirect URI it
// was issued for (the token exchange has to repeat the same URI).
type OnNewClientCode func(ctx context.Context, code string, redirectURI string) error

// NewClientCode runs the authorization-code flow on every listen port at
// once; the first port that yields a code wins and stops the others.
func NewClientCode(
	ctx context.Context,
	endpoints twitch.Endpoints,
	clientID string,
	state string,
	oauthHandler OAuthHandler,
	listenPorts []uint16,
	onNewClientCode OnNewClientCode,
) (_err error) {
	logger.Debugf(ctx, "NewClientCode")
	defer func() { logger.Debugf(ctx, "/NewClientCode: %v", _err) }()

	if oauthHandler == nil {
		oauthHandler = oauthhandler.OAuth2HandlerViaCLI
	}
	if len(listenPorts) == 0 {
		return fmt.Errorf("no OAuth listen ports configured")
	}

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	var (
		wg        sync.WaitGroup
		errLocker xsync.Mutex
		resultErr *multierror.Error
		success   atomic.Bool
	)

	alreadyListening := map[uint16]struct{}{}
	for _, listenPort := range listenPorts {
		if _, ok := alreadyListening[listenPort]; ok {
			continue
		}
		alreadyListening[listenPort] = struct{}{}

		logger.Debugf(ctx, "starting the oauth handler at port %d", listenPort)
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer func() { logger.Debugf(ctx, "ended the oauth handler at port %d", listenPort) }()
			defer wg.Done()

			redirectURI := RedirectURI(listenPort)
			authURL := GetAuthorizationURL(
				endpoints,
				&helix.AuthorizationURLParams{
					ResponseType: "code",
					Scopes:       Scopes,
					State:        state,
				},
				clientID,
				redirectURI,
			)

			arg := oauthhandler.OAuthHandlerArgument{
				AuthURL:    authURL,
				ListenPort: listenPort,
				State:      state,
				ExchangeFn: func(ctx context.Context, code string) (_err error) {
					logger.Debugf(ctx, "ExchangeFn()")
					defer func() { logger.Debugf(ctx, "/ExchangeFn(): %v", _err) }()
					if code == "" {
						return fmt.Errorf("code is empty")
					}
					return onNewClientCode(ctx, code, redirectURI)
				},
			}

			err := oauthHandler(ctx, arg)
			if err != nil {
				if success.Load() {
					return
				}
				errmon.ObserveErrorCtx(ctx, err)
				errLocker.Do(ctx, func() {
					resultErr = multierror.Append(resultErr, fmt.Errorf(
						"unable to get or exchange the oauth code to a token at port %d: %w",
						listenPort, err,
					))
				})
				return
			}
			success.Store(true)
			cancelFn()
		})
	}

	wg.Wait()
	logger.Debugf(ctx, "did successfully took a new client code? -- %v", success.Load())
	if success.Load() {
		return nil
	}
	return resultErr.ErrorOrNil()
}
