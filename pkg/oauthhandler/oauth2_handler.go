package oauthhandler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/predictctl/pkg/xpath"
)

type OAuthHandlerArgument struct {
	AuthURL    string
	ListenPort uint16

	// State is the value sent in the authorization URL; a callback
	// carrying any other state is rejected.
	State string

	ExchangeFn func(ctx context.Context, code string) error
}

// CallbackResult is what the platform passed to the redirect URI.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

func callbackResultFromQuery(q url.Values) CallbackResult {
	return CallbackResult{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// Verify checks the callback against the expected state and returns the code.
func (r CallbackResult) Verify(expectedState string) (string, error) {
	if r.Error != "" {
		return "", ErrAuthorizationDenied{Reason: r.Error, Description: r.ErrorDescription}
	}
	if expectedState != "" && r.State != expectedState {
		return "", ErrStateMismatch{}
	}
	if r.Code == "" {
		return "", ErrNoCode{}
	}
	return r.Code, nil
}

type ErrAuthorizationDenied struct {
	Reason      string
	Description string
}

func (e ErrAuthorizationDenied) Error() string {
	return fmt.Sprintf("the authorization was denied: %s: %s", e.Reason, e.Description)
}

type ErrStateMismatch struct{}

func (ErrStateMismatch) Error() string {
	return "the state in the callback does not match the one sent (possible CSRF)"
}

type ErrNoCode struct{}

func (ErrNoCode) Error() string {
	return "no code received"
}

// ParseCallbackInput accepts either a bare code or the whole URL the
// browser was redirected to.
func ParseCallbackInput(input string) CallbackResult {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "?") {
		return CallbackResult{Code: input}
	}
	u, err := url.Parse(input)
	if err != nil {
		return CallbackResult{Code: input}
	}
	return callbackResultFromQuery(u.Query())
}

func OAuth2HandlerViaCLI(ctx context.Context, arg OAuthHandlerArgument) error {
	return oauth2HandlerViaReader(ctx, arg, os.Stdin, os.Stdout)
}

func oauth2HandlerViaReader(
	ctx context.Context,
	arg OAuthHandlerArgument,
	in io.Reader,
	out io.Writer,
) error {
	fmt.Fprintf(
		out,
		"It is required to get an oauth2 token. "+
			"Please open the link below in the browser:\n\n\t%s\n\n",
		arg.AuthURL,
	)

	fmt.Fprintf(out, "Enter the code (or the whole URL you were redirected to): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("unable to read the authorization code: %w", err)
	}

	result := ParseCallbackInput(line)
	if result.State == "" {
		// a bare code carries no state to compare with
		result.State = arg.State
	}
	code, err := result.Verify(arg.State)
	if err != nil {
		return err
	}
	return arg.ExchangeFn(ctx, code)
}

func OAuth2HandlerViaBrowser(ctx context.Context, arg OAuthHandlerArgument) error {
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	resultCh, _, err := NewCodeReceiver(ctx, arg.ListenPort)
	if err != nil {
		return err
	}

	err = LaunchBrowser(ctx, arg.AuthURL)
	if err != nil {
		return err
	}

	fmt.Printf(
		"Your browser has been launched (URL: %s).\nPlease approve the permissions.\n",
		arg.AuthURL,
	)

	// Wait for the web server to get the code.
	var result CallbackResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result = <-resultCh:
	}

	code, err := result.Verify(arg.State)
	if err != nil {
		return err
	}
	return arg.ExchangeFn(ctx, code)
}

// NewCodeReceiver listens on 127.0.0.1:listenPort (0 means any free port)
// until ctx is cancelled, and reports the first callback received.
func NewCodeReceiver(
	ctx context.Context,
	listenPort uint16,
) (<-chan CallbackResult, uint16, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", listenPort))
	if err != nil {
		return nil, 0, err
	}
	resultCh := make(chan CallbackResult, 1)

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := callbackResultFromQuery(r.URL.Query())
			select {
			case resultCh <- result:
			default:
				logger.Debugf(r.Context(), "a callback was already received, ignoring this one")
			}
			w.Header().Set("Content-Type", "text/plain")
			if result.Code == "" {
				fmt.Fprintf(w, "No code received :(\r\n\r\nYou can close this browser window.")
				return
			}
			fmt.Fprintf(w, "Received the code.\r\n\r\nYou can now safely close this browser window.")
		}),
	}

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		listener.Close()
		srv.Close()
	})

	observability.Go(ctx, func(ctx context.Context) {
		srv.Serve(listener)
	})

	return resultCh, uint16(listener.Addr().(*net.TCPAddr).Port), nil
}

func LaunchBrowser(
	ctx context.Context,
	url string,
) error {
	var args []string
	switch runtime.GOOS {
	case "darwin":
		args = []string{"open"}
	case "linux":
		args = []string{"xdg-open"}
	case "windows":
		args = []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return fmt.Errorf("unsupported platform: <%s>", runtime.GOOS)
	}

	execPath, err := xpath.GetExecPath(args[0])
	if err != nil {
		return fmt.Errorf("unable to find '%s': %w", args[0], err)
	}

	args = append(args, url)
	logger.Debugf(ctx, "launching a browser using command '%s'", strings.Join(args, " "))
	return exec.Command(execPath, args[1:]...).Start()
}
