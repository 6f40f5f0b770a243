package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
	"github.com/caffeinepub/connect-dating/internal/gateway/gatewaytest"
	"github.com/caffeinepub/connect-dating/internal/query"
	redrepo "github.com/caffeinepub/connect-dating/internal/repo/redis"
	"github.com/caffeinepub/connect-dating/internal/services/rate"
)

var (
	alice = model.SelfAuthenticating([]byte("alice"))
	bob   = model.SelfAuthenticating([]byte("bob"))
)

func newSessionClient(t *testing.T, fake *gatewaytest.Fake, caller model.Principal) *query.Client {
	t.Helper()
	c := query.NewClient(context.Background(), fake.As(caller), query.ClientOptions{})
	t.Cleanup(c.Close)
	return c
}

func TestCallerProfileStates(t *testing.T) {
	fake := gatewaytest.NewFake()
	svc := NewService(Dependencies{})
	ctx := context.Background()

	disconnected := query.NewClient(ctx, nil, query.ClientOptions{})
	defer disconnected.Close()
	if got := svc.CallerProfile(ctx, disconnected).Kind(); got != model.ProfileNotLoaded {
		t.Fatalf("unexpected disconnected state: %s", got)
	}

	c := newSessionClient(t, fake, alice)
	if got := svc.CallerProfile(ctx, c); !got.NeedsSetup() {
		t.Fatalf("caller without profile should need setup, got %s", got.Kind())
	}

	if err := svc.CreateProfile(ctx, c, model.ShortProfile{
		FullName:      "Alice",
		Age:           29,
		Bio:           "hi",
		CurrentStatus: enums.StatusOffline,
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	state := svc.CallerProfile(ctx, c)
	profile, ok := state.Profile()
	if !ok || profile.FullName != "Alice" {
		t.Fatalf("profile should be present after creation, got %s", state.Kind())
	}
}

func TestCallerProfileErrorIsNotMissing(t *testing.T) {
	fake := gatewaytest.NewFake()
	fake.FailNext("getCallerUserProfile", errors.New("boom"))
	svc := NewService(Dependencies{})

	state := svc.CallerProfile(context.Background(), newSessionClient(t, fake, alice))
	if state.NeedsSetup() || state.Kind() != model.ProfileNotLoaded {
		t.Fatalf("failed read must not ask for setup, got %s", state.Kind())
	}
}

func TestLikeUserInvalidatesMatchesAndProfile(t *testing.T) {
	fake := gatewaytest.NewFake()
	fake.PutProfile(alice, model.UserProfile{FullName: "Alice", Age: 30})
	fake.PutProfile(bob, model.UserProfile{FullName: "Bob", Age: 31})
	svc := NewService(Dependencies{})
	ctx := context.Background()

	bobClient := newSessionClient(t, fake, bob)
	if matched, err := svc.LikeUser(ctx, bobClient, bob, alice); err != nil || matched {
		t.Fatalf("first like: matched=%v err=%v", matched, err)
	}

	c := newSessionClient(t, fake, alice)
	svc.Matches(ctx, c)
	svc.CallerProfile(ctx, c)
	svc.Messages(ctx, c)

	matched, err := svc.LikeUser(ctx, c, alice, bob)
	if err != nil || !matched {
		t.Fatalf("mutual like should match: matched=%v err=%v", matched, err)
	}

	matches := svc.Matches(ctx, c)
	if len(matches.Data) != 1 || matches.Data[0].User != bob {
		t.Fatalf("matches should be refetched after like: %+v", matches.Data)
	}
	profile, _ := svc.CallerProfile(ctx, c).Profile()
	if !profile.HasMatch(bob) {
		t.Fatalf("caller profile should be refetched after like")
	}
	svc.Messages(ctx, c)

	if got := fake.Calls("getMatches"); got != 2 {
		t.Fatalf("unexpected getMatches calls: got %d want %d", got, 2)
	}
	if got := fake.Calls("getCallerUserProfile"); got != 2 {
		t.Fatalf("unexpected getCallerUserProfile calls: got %d want %d", got, 2)
	}
	if got := fake.Calls("getMessages"); got != 1 {
		t.Fatalf("messages must stay cached after a like: got %d calls", got)
	}
}

func TestSendMessageInvalidatesMessagesOnly(t *testing.T) {
	fake := gatewaytest.NewFake()
	svc := NewService(Dependencies{})
	ctx := context.Background()
	c := newSessionClient(t, fake, alice)

	svc.Messages(ctx, c)
	svc.Matches(ctx, c)

	if err := svc.SendMessage(ctx, c, alice, bob, "  hello  "); err != nil {
		t.Fatalf("send message: %v", err)
	}

	messages := svc.Messages(ctx, c)
	if len(messages.Data) != 1 || messages.Data[0].Content != "hello" {
		t.Fatalf("unexpected messages after send: %+v", messages.Data)
	}
	svc.Matches(ctx, c)
	if got := fake.Calls("getMatches"); got != 1 {
		t.Fatalf("matches must stay cached after a message: got %d calls", got)
	}
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	fake := gatewaytest.NewFake()
	svc := NewService(Dependencies{})
	ctx := context.Background()
	c := newSessionClient(t, fake, alice)

	svc.Messages(ctx, c)
	fake.FailNext("sendMessage", errors.New("rejected"))
	if err := svc.SendMessage(ctx, c, alice, bob, "hi"); err == nil {
		t.Fatalf("expected send failure")
	}
	svc.Messages(ctx, c)
	if got := fake.Calls("getMessages"); got != 1 {
		t.Fatalf("failed send must not invalidate: got %d calls", got)
	}
}

func TestMutationsWithoutConnectionFail(t *testing.T) {
	svc := NewService(Dependencies{})
	ctx := context.Background()
	c := query.NewClient(ctx, nil, query.ClientOptions{})
	defer c.Close()

	if _, err := svc.LikeUser(ctx, c, alice, bob); !errors.Is(err, gateway.ErrNoConnection) {
		t.Fatalf("expected ErrNoConnection from like, got %v", err)
	}
	if err := svc.SendMessage(ctx, c, alice, bob, "hi"); !errors.Is(err, gateway.ErrNoConnection) {
		t.Fatalf("expected ErrNoConnection from send, got %v", err)
	}
	if state := svc.Messages(ctx, c); state.IsFetched || len(state.Data) != 0 {
		t.Fatalf("disconnected read should be empty: %+v", state)
	}
}

func TestMutationInputValidation(t *testing.T) {
	svc := NewService(Dependencies{})
	ctx := context.Background()
	c := newSessionClient(t, gatewaytest.NewFake(), alice)

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "blank message", run: func() error { return svc.SendMessage(ctx, c, alice, bob, "   ") }},
		{name: "message without recipient", run: func() error { return svc.SendMessage(ctx, c, alice, "", "hi") }},
		{name: "message to self", run: func() error { return svc.SendMessage(ctx, c, alice, alice, "hi") }},
		{name: "like self", run: func() error { _, err := svc.LikeUser(ctx, c, alice, alice); return err }},
		{name: "underage profile", run: func() error {
			return svc.CreateProfile(ctx, c, model.ShortProfile{FullName: "Kid", Age: 12})
		}},
		{name: "unknown role", run: func() error { return svc.AssignRole(ctx, c, bob, "owner") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAssignRoleInvalidatesRoleQueries(t *testing.T) {
	fake := gatewaytest.NewFake()
	fake.SetRole(alice, enums.RoleAdmin)
	svc := NewService(Dependencies{})
	ctx := context.Background()

	c := newSessionClient(t, fake, alice)
	if isAdmin := svc.IsCallerAdmin(ctx, c); !isAdmin.Data {
		t.Fatalf("alice should be admin")
	}
	svc.CallerRole(ctx, c)

	if err := svc.AssignRole(ctx, c, alice, enums.RoleUser); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if role := svc.CallerRole(ctx, c); role.Data != enums.RoleUser {
		t.Fatalf("unexpected role after assignment: %q", role.Data)
	}
	if isAdmin := svc.IsCallerAdmin(ctx, c); isAdmin.Data {
		t.Fatalf("admin flag should be refetched after assignment")
	}
}

func TestLikeRateLimitSkipsBackend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	fake := gatewaytest.NewFake()
	fake.PutProfile(alice, model.UserProfile{FullName: "Alice", Age: 30})
	fake.PutProfile(bob, model.UserProfile{FullName: "Bob", Age: 31})

	svc := NewService(Dependencies{
		Limiter: rate.NewLimiter(redrepo.NewRateRepo(client), rate.Limits{LikesPer10Seconds: 2}),
	})
	ctx := context.Background()
	c := newSessionClient(t, fake, alice)

	if got := svc.LikeCooldown(ctx, alice); got != 0 {
		t.Fatalf("unexpected cooldown before likes: got %d want %d", got, 0)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.LikeUser(ctx, c, alice, bob); err != nil {
			t.Fatalf("like #%d: %v", i+1, err)
		}
	}
	if got := svc.LikeCooldown(ctx, alice); got <= 0 || got > 10 {
		t.Fatalf("unexpected cooldown after filling the window: %d", got)
	}

	_, err = svc.LikeUser(ctx, c, alice, bob)
	tf, ok := IsTooFast(err)
	if !ok {
		t.Fatalf("expected TooFastError, got %v", err)
	}
	if tf.RetryAfter() <= 0 || tf.RetryAfter() > 10 {
		t.Fatalf("unexpected retry after: %d", tf.RetryAfter())
	}
	if got := fake.Calls("likeUser"); got != 2 {
		t.Fatalf("throttled like must not reach the backend: got %d calls", got)
	}

	mr.FastForward(11 * time.Second)
	if _, err := svc.LikeUser(ctx, c, alice, bob); err != nil {
		t.Fatalf("like after window reset: %v", err)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, rate.Action, string) (int64, bool, error) {
	return 0, false, errors.New("redis down")
}

func (failingLimiter) RetryAfter(context.Context, rate.Action, string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestLimiterFailureDoesNotBlockWrites(t *testing.T) {
	svc := NewService(Dependencies{Limiter: failingLimiter{}})
	c := newSessionClient(t, gatewaytest.NewFake(), alice)

	if err := svc.SendMessage(context.Background(), c, alice, bob, "hi"); err != nil {
		t.Fatalf("send should proceed when limiter is unavailable: %v", err)
	}
	if got := svc.LikeCooldown(context.Background(), alice); got != 0 {
		t.Fatalf("unavailable limiter should not report a cooldown: got %d", got)
	}
}

func TestCurrentUserProfileFollowsSaves(t *testing.T) {
	fake := gatewaytest.NewFake()
	svc := NewService(Dependencies{})
	ctx := context.Background()
	c := newSessionClient(t, fake, alice)

	missing := svc.CurrentUserProfile(ctx, c)
	if missing.HasData || !errors.Is(missing.Err, gateway.ErrNotFound) {
		t.Fatalf("unexpected state without profile: %+v", missing)
	}

	fake.PutProfile(alice, model.UserProfile{FullName: "Alice", Age: 29, Bio: "hi"})
	c.Invalidate(query.NewKey(KeyCurrentUserProfile, "current"))
	current := svc.CurrentUserProfile(ctx, c)
	if !current.HasData || current.Data.FullName != "Alice" {
		t.Fatalf("unexpected current profile: %+v", current)
	}

	updated := current.Data.Clone()
	updated.Bio = "updated"
	if err := svc.SaveProfile(ctx, c, updated); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if got := svc.CurrentUserProfile(ctx, c); got.Data.Bio != "updated" {
		t.Fatalf("save should refresh the current profile: got %q", got.Data.Bio)
	}
	if fake.Calls("getCurrentUserProfile") != 3 {
		t.Fatalf("unexpected backend calls: got %d want %d", fake.Calls("getCurrentUserProfile"), 3)
	}
}
