package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway/gatewaytest"
	"github.com/caffeinepub/connect-dating/internal/query"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	browsesvc "github.com/caffeinepub/connect-dating/internal/services/browse"
	conversationsvc "github.com/caffeinepub/connect-dating/internal/services/conversations"
	matchessvc "github.com/caffeinepub/connect-dating/internal/services/matches"
	profilesvc "github.com/caffeinepub/connect-dating/internal/services/profiles"
	"github.com/caffeinepub/connect-dating/internal/services/rate"
	remotesvc "github.com/caffeinepub/connect-dating/internal/services/remote"
	"github.com/caffeinepub/connect-dating/internal/view"
)

const providerURL = "http://idp.test/idp/authorize"

type fixture struct {
	fake     *gatewaytest.Fake
	tokens   *authsvc.TokenManager
	auth     *authsvc.Service
	registry *query.Registry
	remote   *remotesvc.Service
	pages    *Pages
	store    *SessionStore
	me       model.Principal
	ann      model.Principal
}

func newFixture(t *testing.T, limiter remotesvc.Limiter) *fixture {
	t.Helper()

	renderer, err := view.NewPageRenderer()
	if err != nil {
		t.Fatalf("create renderer: %v", err)
	}

	fake := gatewaytest.NewFake()
	tokens := authsvc.NewTokenManager("handler-test-secret", time.Hour)
	registry := query.NewRegistry(context.Background(), gatewaytest.Connector{Fake: fake, Verifier: tokens}, query.ClientOptions{})
	t.Cleanup(registry.Close)

	remote := remotesvc.NewService(remotesvc.Dependencies{Limiter: limiter})

	f := &fixture{
		fake:     fake,
		tokens:   tokens,
		auth:     authsvc.NewService(tokens, authsvc.NewMemoryStore(), time.Hour),
		registry: registry,
		remote:   remote,
		pages:    NewPages(renderer, remote, nil),
		store:    NewSessionStore("test-session", "0123456789abcdef0123456789abcdef", time.Hour, false),
		me:       model.SelfAuthenticating([]byte("me")),
		ann:      model.SelfAuthenticating([]byte("ann")),
	}
	fake.PutProfile(f.me, model.UserProfile{FullName: "Me Myself", Age: 30, Bio: "hello"})
	fake.PutProfile(f.ann, model.UserProfile{FullName: "Ann Lee", Age: 28, Bio: "likes hiking", NativeLanguages: []string{"English"}})
	return f
}

// session returns a fresh browser session, optionally logged in as principal.
func (f *fixture) session(t *testing.T, principal model.Principal) *Session {
	t.Helper()
	sess, err := f.store.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.Status = enums.LoginIdle
	if principal.IsZero() {
		return sess
	}

	token, _, err := f.tokens.IssueToken(principal)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	state, err := f.auth.BeginLogin(context.Background(), sess.SID())
	if err != nil {
		t.Fatalf("begin login: %v", err)
	}
	if _, err := f.auth.CompleteLogin(context.Background(), sess.SID(), state, token); err != nil {
		t.Fatalf("complete login: %v", err)
	}
	sess.Status = enums.LoginSuccess
	return sess
}

func (f *fixture) request(t *testing.T, method, target string, form url.Values, sess *Session) *http.Request {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	ctx := WithSession(req.Context(), sess)
	identity, ok, err := f.auth.Identity(ctx, sess.SID())
	if err != nil {
		t.Fatalf("resolve identity: %v", err)
	}
	if ok {
		ctx = authsvc.WithIdentity(ctx, identity)
	}
	ctx = query.WithClient(ctx, f.registry.ForSession(sess.SID(), identity.Token))
	return req.WithContext(ctx)
}

type limiterStub struct {
	retryAfter int64
}

func (s limiterStub) Allow(context.Context, rate.Action, string) (int64, bool, error) {
	return s.retryAfter, false, nil
}

func (s limiterStub) RetryAfter(context.Context, rate.Action, string) (int64, error) {
	return s.retryAfter, nil
}

func TestGuestPagesAskForLogin(t *testing.T) {
	f := newFixture(t, nil)
	matches := NewMatchesHandler(f.pages, matchessvc.NewService(f.remote))

	sess := f.session(t, "")
	rr := httptest.NewRecorder()
	matches.Get(rr, f.request(t, http.MethodGet, "/matches", nil, sess))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Please login to view your matches") {
		t.Fatalf("guest should be asked to login, body: %s", body)
	}
	if strings.Contains(body, `href="/browse">Browse</a>`) {
		t.Fatalf("guest must not see navigation")
	}
	if f.fake.Calls("getMatches") != 0 {
		t.Fatalf("guest page must not reach the backend")
	}
}

func TestLoginRestartsAuthenticatedSession(t *testing.T) {
	f := newFixture(t, nil)
	h := NewAuthHandler(f.pages, f.auth, f.registry, providerURL, nil)

	sess := f.session(t, f.me)
	req := f.request(t, http.MethodPost, "http://connect.test/login", url.Values{}, sess)
	if f.registry.Len() != 1 {
		t.Fatalf("expected a cached client before login")
	}

	rr := httptest.NewRecorder()
	h.Login(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusSeeOther)
	}
	location, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Host != "idp.test" || location.Query().Get("redirect_uri") != "http://connect.test/auth/callback" || location.Query().Get("state") == "" {
		t.Fatalf("unexpected provider redirect: %s", location)
	}

	status, err := f.auth.Status(context.Background(), sess.SID())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != enums.LoginInProgress {
		t.Fatalf("unexpected login status: got %s want %s", status, enums.LoginInProgress)
	}
	if f.registry.Len() != 0 {
		t.Fatalf("restarted login must clear the session cache")
	}
}

func TestCallbackWithBadTokenFlashesError(t *testing.T) {
	f := newFixture(t, nil)
	h := NewAuthHandler(f.pages, f.auth, f.registry, providerURL, nil)

	sess := f.session(t, "")
	state, err := f.auth.BeginLogin(context.Background(), sess.SID())
	if err != nil {
		t.Fatalf("begin login: %v", err)
	}
	rr := httptest.NewRecorder()
	h.Callback(rr, f.request(t, http.MethodGet, "/auth/callback?token=forged&state="+url.QueryEscape(state), nil, sess))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusSeeOther)
	}
	status, _ := f.auth.Status(context.Background(), sess.SID())
	if status != enums.LoginError {
		t.Fatalf("unexpected login status: got %s want %s", status, enums.LoginError)
	}
	if flash := sess.Flash(); !strings.Contains(flash, "Login failed") {
		t.Fatalf("unexpected flash: %q", flash)
	}
	if rr.Header().Get("Set-Cookie") == "" {
		t.Fatalf("session cookie should be written")
	}
}

func TestCallbackWithoutPendingLoginIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	h := NewAuthHandler(f.pages, f.auth, f.registry, providerURL, nil)

	token, _, err := f.tokens.IssueToken(f.ann)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	sess := f.session(t, "")
	rr := httptest.NewRecorder()
	h.Callback(rr, f.request(t, http.MethodGet, "/auth/callback?token="+url.QueryEscape(token), nil, sess))

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusSeeOther)
	}
	if _, ok, _ := f.auth.Identity(context.Background(), sess.SID()); ok {
		t.Fatalf("callback without a started login must not sign the session in")
	}
	if flash := sess.Flash(); !strings.Contains(flash, "Login failed") {
		t.Fatalf("unexpected flash: %q", flash)
	}
}

func TestLogoutClearsIdentityAndCache(t *testing.T) {
	f := newFixture(t, nil)
	h := NewAuthHandler(f.pages, f.auth, f.registry, providerURL, nil)

	sess := f.session(t, f.me)
	sess.SetCursor(browsesvc.Cursor{Index: 3})
	req := f.request(t, http.MethodPost, "/logout", url.Values{}, sess)

	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	if _, ok, _ := f.auth.Identity(context.Background(), sess.SID()); ok {
		t.Fatalf("identity should be gone after logout")
	}
	if f.registry.Len() != 0 {
		t.Fatalf("logout must clear the session cache")
	}
	if sess.Cursor().Index != 0 {
		t.Fatalf("logout should reset browse progress")
	}
}

func TestBrowseLikeMutualMatchShowsNotification(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.fake.As(f.ann).LikeUser(context.Background(), f.me); err != nil {
		t.Fatalf("seed like: %v", err)
	}
	h := NewBrowseHandler(f.pages, browsesvc.NewService(browsesvc.Dependencies{Remote: f.remote}), nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/browse", nil, sess))
	if body := rr.Body.String(); !strings.Contains(body, "Ann Lee") || !strings.Contains(body, "1 profile to explore") {
		t.Fatalf("browse page should show ann, body: %s", body)
	}

	rr = httptest.NewRecorder()
	h.Like(rr, f.request(t, http.MethodPost, "/browse/like", url.Values{"candidate": {f.ann.String()}}, sess))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusSeeOther)
	}
	notice, ok := sess.Notice(time.Now())
	if !ok || notice.DisplayName() != "Ann Lee" {
		t.Fatalf("expected a visible match notice for ann, got %+v ok=%v", notice, ok)
	}

	rr = httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/browse", nil, sess))
	body := rr.Body.String()
	if !strings.Contains(body, "It's a Match!") || !strings.Contains(body, "You and Ann Lee liked each other!") {
		t.Fatalf("match notification missing, body: %s", body)
	}
	if !strings.Contains(body, "No More Profiles") {
		t.Fatalf("matched user should leave the deck, body: %s", body)
	}
}

func TestBrowseLikeTooFastKeepsCursor(t *testing.T) {
	f := newFixture(t, limiterStub{retryAfter: 7})
	h := NewBrowseHandler(f.pages, browsesvc.NewService(browsesvc.Dependencies{Remote: f.remote}), nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Like(rr, f.request(t, http.MethodPost, "/browse/like", url.Values{"candidate": {f.ann.String()}}, sess))

	if f.fake.Calls("likeUser") != 0 {
		t.Fatalf("throttled like must not reach the backend")
	}
	if sess.Cursor() != (browsesvc.Cursor{}) {
		t.Fatalf("throttled like must not move the cursor: %+v", sess.Cursor())
	}
	if flash := sess.Flash(); !strings.Contains(flash, "Try again in 7 seconds") {
		t.Fatalf("unexpected flash: %q", flash)
	}
}

func TestBrowseDisablesLikeWhileThrottled(t *testing.T) {
	f := newFixture(t, limiterStub{retryAfter: 7})
	h := NewBrowseHandler(f.pages, browsesvc.NewService(browsesvc.Dependencies{Remote: f.remote}), nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/browse", nil, sess))
	body := rr.Body.String()
	if !strings.Contains(body, "Ann Lee") {
		t.Fatalf("browse page should show ann, body: %s", body)
	}
	if !strings.Contains(body, " disabled>Like</button>") || !strings.Contains(body, "Try again in 7 seconds.") {
		t.Fatalf("like button should be disabled with a countdown, body: %s", body)
	}

	f = newFixture(t, nil)
	h = NewBrowseHandler(f.pages, browsesvc.NewService(browsesvc.Dependencies{Remote: f.remote}), nil)
	sess = f.session(t, f.me)
	rr = httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/browse", nil, sess))
	if body := rr.Body.String(); strings.Contains(body, "disabled>Like") || strings.Contains(body, "Try again in") {
		t.Fatalf("like button should be enabled without a limiter, body: %s", body)
	}
}

func TestBrowsePassAndRestart(t *testing.T) {
	f := newFixture(t, nil)
	h := NewBrowseHandler(f.pages, browsesvc.NewService(browsesvc.Dependencies{Remote: f.remote}), nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Pass(rr, f.request(t, http.MethodPost, "/browse/pass", url.Values{"candidate": {f.ann.String()}}, sess))
	if sess.Cursor().Last != f.ann {
		t.Fatalf("pass should advance past ann: %+v", sess.Cursor())
	}
	if f.fake.Calls("likeUser") != 0 {
		t.Fatalf("pass must not reach the backend")
	}

	rr = httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/browse", nil, sess))
	if !strings.Contains(rr.Body.String(), "No More Profiles") {
		t.Fatalf("deck should be exhausted after passing the only candidate")
	}

	rr = httptest.NewRecorder()
	h.Restart(rr, f.request(t, http.MethodPost, "/browse/restart", url.Values{}, sess))
	rr = httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/browse", nil, sess))
	if !strings.Contains(rr.Body.String(), "Ann Lee") {
		t.Fatalf("restart should show ann again")
	}
}

func TestMessagesSendAndPollThread(t *testing.T) {
	f := newFixture(t, nil)
	h := NewMessagesHandler(f.pages, conversationsvc.NewService(f.remote, nil), f.remote, time.Second, nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Send(rr, f.request(t, http.MethodPost, "/messages/send", url.Values{
		"partner": {f.ann.String()},
		"content": {"  hi ann  "},
	}, sess))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusSeeOther)
	}
	if loc := rr.Header().Get("Location"); loc != "/messages?partner="+url.QueryEscape(f.ann.String()) {
		t.Fatalf("unexpected redirect: %s", loc)
	}

	rr = httptest.NewRecorder()
	h.Thread(rr, f.request(t, http.MethodGet, "/messages/thread?partner="+url.QueryEscape(f.ann.String()), nil, sess))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `id="thread"`) || !strings.Contains(body, "hi ann") || strings.Contains(body, "<html") {
		t.Fatalf("unexpected thread fragment: %s", body)
	}

	rr = httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/messages", nil, sess))
	body = rr.Body.String()
	if !strings.Contains(body, "Ann Lee") || !strings.Contains(body, "hi ann") {
		t.Fatalf("inbox should open the conversation with ann, body: %s", body)
	}
}

func TestMessagesSendEmptyContentFlashes(t *testing.T) {
	f := newFixture(t, nil)
	h := NewMessagesHandler(f.pages, conversationsvc.NewService(f.remote, nil), f.remote, time.Second, nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Send(rr, f.request(t, http.MethodPost, "/messages/send", url.Values{
		"partner": {f.ann.String()},
		"content": {"   "},
	}, sess))

	if f.fake.Calls("sendMessage") != 0 {
		t.Fatalf("blank message must not reach the backend")
	}
	if flash := sess.Flash(); flash == "" {
		t.Fatalf("blank message should be reported")
	}
}

func TestProfileSetupValidatesThenCreates(t *testing.T) {
	f := newFixture(t, nil)
	h := NewProfileHandler(f.pages, profilesvc.NewService(f.remote), f.remote, nil)
	newcomer := model.SelfAuthenticating([]byte("newcomer"))
	sess := f.session(t, newcomer)

	rr := httptest.NewRecorder()
	h.Setup(rr, f.request(t, http.MethodPost, "/profile/setup", url.Values{
		"age":    {"17"},
		"bio":    {"new here"},
		"action": {"save"},
	}, sess))
	body := rr.Body.String()
	if !strings.Contains(body, "Full name is required") || !strings.Contains(body, "Age must be between 18 and 120") {
		t.Fatalf("setup errors missing, body: %s", body)
	}
	if f.fake.Calls("createUserProfile") != 0 {
		t.Fatalf("invalid setup must not reach the backend")
	}

	rr = httptest.NewRecorder()
	h.Setup(rr, f.request(t, http.MethodPost, "/profile/setup", url.Values{
		"full_name":             {"New Comer"},
		"age":                   {"25"},
		"bio":                   {"new here"},
		"native_language_input": {"Polish"},
		"action":                {"add:native_languages"},
	}, sess))
	if body := rr.Body.String(); !strings.Contains(body, `name="native_languages" value="Polish"`) {
		t.Fatalf("added language should be carried in the form, body: %s", body)
	}

	rr = httptest.NewRecorder()
	h.Setup(rr, f.request(t, http.MethodPost, "/profile/setup", url.Values{
		"full_name":        {"New Comer"},
		"age":              {"25"},
		"bio":              {"new here"},
		"native_languages": {"Polish"},
		"action":           {"save"},
	}, sess))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/browse" {
		t.Fatalf("unexpected response: %d %s", rr.Code, rr.Header().Get("Location"))
	}

	profile, err := f.fake.As(newcomer).GetCallerUserProfile(context.Background())
	if err != nil || profile == nil {
		t.Fatalf("profile should exist: %v", err)
	}
	if profile.FullName != "New Comer" || len(profile.NativeLanguages) != 1 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestProfilePageShowsStats(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.fake.As(f.me).LikeUser(context.Background(), f.ann); err != nil {
		t.Fatalf("seed like: %v", err)
	}
	f.fake.SetRole(f.me, enums.RoleAdmin)
	h := NewProfileHandler(f.pages, profilesvc.NewService(f.remote), f.remote, nil)
	sess := f.session(t, f.me)

	rr := httptest.NewRecorder()
	h.Get(rr, f.request(t, http.MethodGet, "/profile", nil, sess))
	body := rr.Body.String()
	if !strings.Contains(body, "Me Myself") || !strings.Contains(body, "<strong>1</strong><p class=\"muted\">Likes Sent</p>") {
		t.Fatalf("profile page should show name and likes sent, body: %s", body)
	}
	if strings.Contains(body, "Welcome to Connect!") {
		t.Fatalf("setup dialog must not show for an existing profile")
	}
	if !strings.Contains(body, `<span class="badge outline">Admin</span>`) {
		t.Fatalf("admin caller should see the admin badge")
	}
}

func TestHealthReportsBackendState(t *testing.T) {
	h := NewHealthHandler(nil)
	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var payload struct {
		OK      bool `json:"ok"`
		Backend bool `json:"backend"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.OK || payload.Backend {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestProfileEditPrefillsForm(t *testing.T) {
	f := newFixture(t, nil)
	h := NewProfileHandler(f.pages, profilesvc.NewService(f.remote), f.remote, nil)

	rr := httptest.NewRecorder()
	h.Edit(rr, f.request(t, http.MethodGet, "/profile/edit", nil, f.session(t, f.me)))
	body := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(body, "Edit Your Profile") || !strings.Contains(body, `value="Me Myself"`) {
		t.Fatalf("editor should be prefilled, status %d body: %s", rr.Code, body)
	}

	stranger := model.SelfAuthenticating([]byte("stranger"))
	rr = httptest.NewRecorder()
	h.Edit(rr, f.request(t, http.MethodGet, "/profile/edit", nil, f.session(t, stranger)))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/profile" {
		t.Fatalf("editing without a profile should redirect: got %d %q", rr.Code, rr.Header().Get("Location"))
	}
}
