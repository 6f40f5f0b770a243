// Package gatewaytest provides an in-memory backend that follows the remote service
// contract, for tests and local development.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoProfile    = errors.New("caller has no profile")
	ErrInvalidInput = errors.New("invalid input")
)

type Fake struct {
	mu       sync.Mutex
	profiles map[model.Principal]*model.UserProfile
	order    []model.Principal
	roles    map[model.Principal]enums.UserRole
	matches  map[model.Principal][]model.MatchAction
	messages []model.Message
	calls    map[string]int
	failures map[string]error
	now      func() time.Time
}

func NewFake() *Fake {
	return &Fake{
		profiles: make(map[model.Principal]*model.UserProfile),
		roles:    make(map[model.Principal]enums.UserRole),
		matches:  make(map[model.Principal][]model.MatchAction),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (f *Fake) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// FailNext makes the next call of op return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Calls returns how many times op was invoked, failed calls included.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) SetRole(user model.Principal, role enums.UserRole) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[user] = role
}

// PutProfile stores a profile directly, bypassing caller checks.
func (f *Fake) PutProfile(user model.Principal, profile model.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putProfileLocked(user, profile.Clone())
}

// PutMessage stores a message directly with the given timestamp.
func (f *Fake) PutMessage(msg model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

// As returns the backend view for caller. The anonymous identity acts as a guest.
func (f *Fake) As(caller model.Principal) gateway.Backend {
	return &callerView{fake: f, caller: caller}
}

func (f *Fake) begin(op string) error {
	f.calls[op]++
	if err, ok := f.failures[op]; ok {
		delete(f.failures, op)
		return err
	}
	return nil
}

func (f *Fake) putProfileLocked(user model.Principal, profile model.UserProfile) {
	if _, ok := f.profiles[user]; !ok {
		f.order = append(f.order, user)
	}
	f.profiles[user] = &profile
}

type callerView struct {
	fake   *Fake
	caller model.Principal
}

var _ gateway.Backend = (*callerView)(nil)

func (v *callerView) requireUser() error {
	if v.caller.IsZero() || v.caller.IsAnonymous() {
		return ErrUnauthorized
	}
	return nil
}

func (v *callerView) CreateUserProfile(_ context.Context, profile model.ShortProfile) error {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("createUserProfile"); err != nil {
		return err
	}
	if err := v.requireUser(); err != nil {
		return err
	}
	if _, ok := f.profiles[v.caller]; ok {
		return gateway.ErrProfileExists
	}
	if strings.TrimSpace(profile.FullName) == "" {
		return fmt.Errorf("full name is required: %w", ErrInvalidInput)
	}

	now := f.now().UTC()
	f.putProfileLocked(v.caller, model.UserProfile{
		FullName:              profile.FullName,
		Age:                   profile.Age,
		Bio:                   profile.Bio,
		Interests:             []string{},
		NativeLanguages:       append([]string{}, profile.NativeLanguages...),
		TargetLanguages:       append([]string{}, profile.TargetLanguages...),
		CurrentStatus:         profile.CurrentStatus,
		LastActive:            now,
		LastMessageCheck:      now,
		SentMatchRequests:     []model.Principal{},
		ReceivedMatchRequests: []model.Principal{},
		Matches:               []model.Principal{},
	})
	if _, ok := f.roles[v.caller]; !ok {
		f.roles[v.caller] = enums.RoleUser
	}
	return nil
}

func (v *callerView) SaveCallerUserProfile(_ context.Context, profile model.UserProfile) error {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("saveCallerUserProfile"); err != nil {
		return err
	}
	if err := v.requireUser(); err != nil {
		return err
	}

	saved := profile.Clone()
	saved.LastActive = f.now().UTC()
	f.putProfileLocked(v.caller, saved)
	return nil
}

func (v *callerView) GetCallerUserProfile(_ context.Context) (*model.UserProfile, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getCallerUserProfile"); err != nil {
		return nil, err
	}
	if err := v.requireUser(); err != nil {
		return nil, err
	}
	profile, ok := f.profiles[v.caller]
	if !ok {
		return nil, nil
	}
	out := profile.Clone()
	return &out, nil
}

func (v *callerView) GetCurrentUserProfile(_ context.Context) (model.UserProfile, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getCurrentUserProfile"); err != nil {
		return model.UserProfile{}, err
	}
	if err := v.requireUser(); err != nil {
		return model.UserProfile{}, err
	}
	profile, ok := f.profiles[v.caller]
	if !ok {
		return model.UserProfile{}, fmt.Errorf("current user profile: %w", gateway.ErrNotFound)
	}
	return profile.Clone(), nil
}

func (v *callerView) GetUserProfile(_ context.Context, user model.Principal) (*model.UserProfile, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getUserProfile"); err != nil {
		return nil, err
	}
	profile, ok := f.profiles[user]
	if !ok {
		return nil, nil
	}
	out := profile.Clone()
	return &out, nil
}

func (v *callerView) GetCallerUserRole(_ context.Context) (enums.UserRole, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getCallerUserRole"); err != nil {
		return "", err
	}
	if role, ok := f.roles[v.caller]; ok {
		return role, nil
	}
	return enums.RoleGuest, nil
}

func (v *callerView) IsCallerAdmin(_ context.Context) (bool, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("isCallerAdmin"); err != nil {
		return false, err
	}
	return f.roles[v.caller] == enums.RoleAdmin, nil
}

func (v *callerView) AssignCallerUserRole(_ context.Context, user model.Principal, role enums.UserRole) error {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("assignCallerUserRole"); err != nil {
		return err
	}
	if f.roles[v.caller] != enums.RoleAdmin {
		return ErrUnauthorized
	}
	f.roles[user] = role
	return nil
}

func (v *callerView) GetCurrentActiveParticipants(_ context.Context) ([]model.Participant, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getCurrentActiveParticipants"); err != nil {
		return nil, err
	}

	items := make([]model.Participant, 0, len(f.order))
	for _, user := range f.order {
		items = append(items, model.Participant{
			Principal: user,
			Status:    f.profiles[user].CurrentStatus,
		})
	}
	return items, nil
}

func (v *callerView) LikeUser(_ context.Context, target model.Principal) (bool, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("likeUser"); err != nil {
		return false, err
	}
	if err := v.requireUser(); err != nil {
		return false, err
	}
	if target == v.caller {
		return false, fmt.Errorf("cannot like yourself: %w", ErrInvalidInput)
	}
	me, ok := f.profiles[v.caller]
	if !ok {
		return false, ErrNoProfile
	}
	them, ok := f.profiles[target]
	if !ok {
		return false, fmt.Errorf("liked user: %w", gateway.ErrNotFound)
	}

	if me.HasMatch(target) {
		return true, nil
	}

	me.SentMatchRequests = appendUnique(me.SentMatchRequests, target)
	them.ReceivedMatchRequests = appendUnique(them.ReceivedMatchRequests, v.caller)

	if !model.ContainsPrincipal(them.SentMatchRequests, v.caller) {
		return false, nil
	}

	now := f.now().UTC()
	me.Matches = appendUnique(me.Matches, target)
	them.Matches = appendUnique(them.Matches, v.caller)
	f.matches[v.caller] = append(f.matches[v.caller], model.MatchAction{User: target, Timestamp: now})
	f.matches[target] = append(f.matches[target], model.MatchAction{User: v.caller, Timestamp: now})
	return true, nil
}

func (v *callerView) GetMatches(_ context.Context) ([]model.MatchAction, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getMatches"); err != nil {
		return nil, err
	}
	if err := v.requireUser(); err != nil {
		return nil, err
	}
	return append([]model.MatchAction{}, f.matches[v.caller]...), nil
}

func (v *callerView) SendMessage(_ context.Context, recipient model.Principal, content string) error {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("sendMessage"); err != nil {
		return err
	}
	if err := v.requireUser(); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" || recipient.IsZero() {
		return fmt.Errorf("message: %w", ErrInvalidInput)
	}

	f.messages = append(f.messages, model.Message{
		Sender:    v.caller,
		Recipient: recipient,
		Content:   content,
		Timestamp: f.now().UTC(),
	})
	if me, ok := f.profiles[v.caller]; ok {
		me.LastActive = f.now().UTC()
	}
	return nil
}

func (v *callerView) GetMessages(_ context.Context) ([]model.Message, error) {
	f := v.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("getMessages"); err != nil {
		return nil, err
	}
	if err := v.requireUser(); err != nil {
		return nil, err
	}

	items := make([]model.Message, 0)
	for _, msg := range f.messages {
		if msg.Sender == v.caller || msg.Recipient == v.caller {
			items = append(items, msg)
		}
	}
	// Grouped by sender rather than by time; ordering is the client's job.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Sender < items[j].Sender
	})
	return items, nil
}

func appendUnique(list []model.Principal, p model.Principal) []model.Principal {
	if model.ContainsPrincipal(list, p) {
		return list
	}
	return append(list, p)
}
