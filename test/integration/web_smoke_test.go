package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/app/webapp"
	"github.com/caffeinepub/connect-dating/internal/config"
	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway/gatewaytest"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
)

func TestHealthz(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = ":0"
	cfg.Redis.Addr = "127.0.0.1:1"

	app, err := webapp.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}

	var payload struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.OK {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

// TestLoginBrowseAndMatch drives the web app against the stub backend over HTTP:
// sign in through the development identity provider, like a profile that already
// liked us back, and open the resulting conversation.
func TestLoginBrowseAndMatch(t *testing.T) {
	mr := miniredis.RunT(t)

	fake := gatewaytest.NewFake()
	cfg := config.Default()
	tokens := authsvc.NewTokenManager(cfg.Identity.TokenSecret, time.Hour)
	stub := httptest.NewServer(gatewaytest.NewServer(fake, tokens, tokens, zap.NewNop()).Handler())
	defer stub.Close()

	me := model.SelfAuthenticating([]byte("dev-idp:me"))
	ann := model.SelfAuthenticating([]byte("dev-idp:ann"))
	fake.PutProfile(me, model.UserProfile{FullName: "Me Myself", Age: 30, Bio: "hi", CurrentStatus: enums.StatusActive})
	fake.PutProfile(ann, model.UserProfile{FullName: "Ann Lee", Age: 28, Bio: "hello", CurrentStatus: enums.StatusActive})
	if _, err := fake.As(ann).LikeUser(context.Background(), me); err != nil {
		t.Fatalf("seed like: %v", err)
	}

	cfg.HTTP.Addr = ":0"
	cfg.Backend.URL = stub.URL
	cfg.Identity.ProviderURL = stub.URL + "/idp/authorize"
	cfg.Redis.Addr = mr.Addr()

	app, err := webapp.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar}

	body := get(t, client, ts.URL+"/browse")
	if !strings.Contains(body, "Please login to browse profiles") {
		t.Fatalf("guest browse should ask for login")
	}

	resp, err := client.PostForm(ts.URL+"/login", url.Values{})
	if err != nil {
		t.Fatalf("post login: %v", err)
	}
	loginBody := readAll(t, resp)
	if !strings.Contains(loginBody, "Identity name") {
		t.Fatalf("login should land on the identity provider form")
	}
	callback := ts.URL + "/auth/callback"
	if !strings.Contains(loginBody, callback) {
		t.Fatalf("identity provider form should carry the callback %q", callback)
	}

	state := resp.Request.URL.Query().Get("state")
	if state == "" {
		t.Fatalf("login redirect should carry a state")
	}
	authorize := stub.URL + "/idp/authorize?" + url.Values{"name": {"me"}, "redirect_uri": {callback}, "state": {state}}.Encode()
	body = get(t, client, authorize)
	if !strings.Contains(body, "Logout") {
		t.Fatalf("callback should finish signed in")
	}

	body = get(t, client, ts.URL+"/browse")
	if !strings.Contains(body, "Ann Lee") || !strings.Contains(body, "1 profile to explore") {
		t.Fatalf("browse should show the single candidate")
	}

	resp, err = client.PostForm(ts.URL+"/browse/like", url.Values{"candidate": {ann.String()}})
	if err != nil {
		t.Fatalf("post like: %v", err)
	}
	body = readAll(t, resp)
	if !strings.Contains(body, "You and Ann Lee liked each other!") {
		t.Fatalf("mutual like should show the match notification")
	}
	if !strings.Contains(body, "No More Profiles") {
		t.Fatalf("browse should be exhausted after the only like")
	}

	body = get(t, client, ts.URL+"/matches")
	if !strings.Contains(body, "Ann Lee") || !strings.Contains(body, "1 mutual connection") {
		t.Fatalf("matches should list the new match")
	}

	resp, err = client.PostForm(ts.URL+"/messages/send", url.Values{"partner": {ann.String()}, "content": {"hey there"}})
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	body = readAll(t, resp)
	if !strings.Contains(body, "hey there") {
		t.Fatalf("conversation should include the sent message")
	}

	resp, err = client.PostForm(ts.URL+"/logout", url.Values{})
	if err != nil {
		t.Fatalf("post logout: %v", err)
	}
	body = readAll(t, resp)
	if strings.Contains(body, "Logout") {
		t.Fatalf("logout should return to the guest shell")
	}
}

func get(t *testing.T, client *http.Client, target string) string {
	t.Helper()
	resp, err := client.Get(target)
	if err != nil {
		t.Fatalf("get %s: %v", target, err)
	}
	return readAll(t, resp)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status for %s: got %d want %d", resp.Request.URL, resp.StatusCode, http.StatusOK)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}
