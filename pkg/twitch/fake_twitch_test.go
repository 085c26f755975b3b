package twitch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/xaionaro-go/predictctl/pkg/secret"
	"github.com/xaionaro-go/predictctl/pkg/twitch/types"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// fakeTwitch is a minimal imitation of id.twitch.tv and api.twitch.tv.
type fakeTwitch struct {
	*httptest.Server

	locker       sync.Mutex
	requests     []recordedRequest
	validToken   string
	refreshReply func(form url.Values) (int, string)
	tokenReply   func(form url.Values) (int, string)
	predictions  []map[string]any
	apiReply     map[string]func(req recordedRequest) (int, string)
}

func newFakeTwitch(t *testing.T, validToken string) *fakeTwitch {
	f := &fakeTwitch{
		validToken: validToken,
		apiReply:   map[string]func(req recordedRequest) (int, string){},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeTwitch) Endpoints() Endpoints {
	return Endpoints{
		AuthBaseURL: f.URL + "/oauth2",
		APIBaseURL:  f.URL + "/helix",
	}
}

func (f *fakeTwitch) Requests(path string) []recordedRequest {
	f.locker.Lock()
	defer f.locker.Unlock()
	var result []recordedRequest
	for _, req := range f.requests {
		if path == "" || req.Path == path {
			result = append(result, req)
		}
	}
	return result
}

func (f *fakeTwitch) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	req := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	}
	f.locker.Lock()
	f.requests = append(f.requests, req)
	f.locker.Unlock()

	w.Header().Set("Content-Type", "application/json")
	status, reply := f.reply(req)
	w.WriteHeader(status)
	fmt.Fprint(w, reply)
}

func (f *fakeTwitch) reply(req recordedRequest) (int, string) {
	if req.Path == "/oauth2/token" {
		form, err := url.ParseQuery(string(req.Body))
		if err != nil {
			return http.StatusBadRequest, `{"status":400,"message":"invalid form"}`
		}
		if form.Get("grant_type") == "refresh_token" && f.refreshReply != nil {
			return f.refreshReply(form)
		}
		if f.tokenReply != nil {
			return f.tokenReply(form)
		}
		return http.StatusBadRequest, `{"status":400,"message":"unexpected token request"}`
	}

	if req.Path == "/oauth2/validate" {
		if req.Header.Get("Authorization") != "OAuth "+f.validToken {
			return http.StatusUnauthorized, `{"status":401,"message":"invalid access token"}`
		}
		return http.StatusOK, `{"client_id":"abc","login":"streamer","user_id":"42","scopes":["channel:manage:predictions"],"expires_in":100}`
	}

	if req.Header.Get("Authorization") != "Bearer "+f.validToken {
		return http.StatusUnauthorized, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`
	}

	if handler, ok := f.apiReply[req.Method+" "+req.Path]; ok {
		return handler(req)
	}

	if req.Method == http.MethodGet && req.Path == "/helix/predictions" {
		b, _ := json.Marshal(map[string]any{"data": f.predictions})
		return http.StatusOK, string(b)
	}
	return http.StatusNotFound, `{"status":404,"message":"not found"}`
}

func refreshReplyWith(accessToken, refreshToken string) func(url.Values) (int, string) {
	return func(form url.Values) (int, string) {
		return http.StatusOK, fmt.Sprintf(
			`{"access_token":%q,"refresh_token":%q,"expires_in":14000,"scope":["channel:manage:predictions"],"token_type":"bearer"}`,
			accessToken, refreshToken,
		)
	}
}

func newTestClient(f *fakeTwitch, accessToken, refreshToken string) *Client {
	return New(types.Credentials{
		ClientID:     "abc",
		ClientSecret: secret.NewString("shh"),
		AccessToken:  secret.NewString(accessToken),
		RefreshToken: secret.NewString(refreshToken),
	}, OptionHTTPClient(f.Client()), OptionEndpoints(f.Endpoints()))
}

func predictionEntry(id string, status types.PredictionStatus, outcomeIDs ...string) map[string]any {
	var outcomes []map[string]any
	for idx, outcomeID := range outcomeIDs {
		outcomes = append(outcomes, map[string]any{"id": outcomeID, "title": fmt.Sprintf("outcome %d", idx)})
	}
	return map[string]any{
		"id":       id,
		"title":    "prediction " + id,
		"status":   string(status),
		"outcomes": outcomes,
	}
}
