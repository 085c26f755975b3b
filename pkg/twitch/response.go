package twitch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// HTTPDoer is the subset of *http.Client used here.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsUnauthorized() bool {
	return r.StatusCode == http.StatusUnauthorized
}

// Result returns the body on 2xx, and ErrHTTPStatus otherwise.
func (r *Response) Result() ([]byte, error) {
	if !r.IsSuccess() {
		return nil, ErrHTTPStatus{StatusCode: r.StatusCode, Body: r.Body}
	}
	return r.Body, nil
}

func doRequest(
	ctx context.Context,
	doer HTTPDoer,
	req *http.Request,
) (*Response, error) {
	logger.Tracef(ctx, "%s %s", req.Method, req.URL)
	resp, err := doer.Do(req)
	if err != nil {
		return nil, ErrTransport{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrTransport{
			Method: req.Method,
			URL:    req.URL.String(),
			Err:    fmt.Errorf("unable to read the response body: %w", err),
		}
	}
	logger.Debugf(ctx, "%s %s -> %d", req.Method, req.URL, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
