package twitch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthExpired matches (via errors.Is) any ErrHTTPStatus with status 401.
var ErrAuthExpired = errors.New("the access token is expired or invalid")

// ErrTransport is a failure to get any HTTP response at all (DNS, connect, TLS, timeout, body read).
type ErrTransport struct {
	Method string
	URL    string
	Err    error
}

var _ error = ErrTransport{}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("unable to send %s %s: %v", e.Method, e.URL, e.Err)
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus is a non-2xx response; the body is kept verbatim.
type ErrHTTPStatus struct {
	StatusCode int
	Body       []byte
}

var _ error = ErrHTTPStatus{}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("received status %d: %s", e.StatusCode, e.Body)
}

func (e ErrHTTPStatus) Is(target error) bool {
	return target == ErrAuthExpired && e.StatusCode == http.StatusUnauthorized
}

// ErrDecode is a response that is not valid JSON or lacks an expected field.
type ErrDecode struct {
	What string
	Body []byte
	Err  error
}

var _ error = ErrDecode{}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unable to decode %s from '%s'", e.What, e.Body)
	}
	return fmt.Sprintf("unable to decode %s from '%s': %v", e.What, e.Body, e.Err)
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

// ErrRefreshFailed is returned by the refresh gate when the refresh
// exchange itself failed; the request is not retried.
type ErrRefreshFailed struct {
	Err error
}

var _ error = ErrRefreshFailed{}

func (e ErrRefreshFailed) Error() string {
	return fmt.Sprintf("unable to refresh the access token: %v", e.Err)
}

func (e ErrRefreshFailed) Unwrap() error {
	return e.Err
}

// ErrEmptyResult is returned when the platform returned nothing where at
// least one entry was expected. The message is JSON, so that whoever
// parses command output does not choke on it.
type ErrEmptyResult struct {
	What string
}

var _ error = ErrEmptyResult{}

func (e ErrEmptyResult) Error() string {
	b, err := json.Marshal(struct {
		Data  []struct{} `json:"data"`
		Error string     `json:"error"`
	}{
		Data:  []struct{}{},
		Error: fmt.Sprintf("no %s found", e.What),
	})
	if err != nil {
		return fmt.Sprintf("no %s found", e.What)
	}
	return string(b)
}

// ErrInvalidPrediction is a prediction that Twitch would reject anyway.
type ErrInvalidPrediction struct {
	Err error
}

var _ error = ErrInvalidPrediction{}

func (e ErrInvalidPrediction) Error() string {
	return fmt.Sprintf("invalid prediction: %v", e.Err)
}

func (e ErrInvalidPrediction) Unwrap() error {
	return e.Err
}

// ErrNoOpenPrediction is returned by the "current prediction" helpers
// when the most recent prediction is already resolved or canceled.
type ErrNoOpenPrediction struct {
	BroadcasterID string
}

var _ error = ErrNoOpenPrediction{}

func (e ErrNoOpenPrediction) Error() string {
	return fmt.Sprintf("no active or locked prediction found for broadcaster '%s'", e.BroadcasterID)
}
