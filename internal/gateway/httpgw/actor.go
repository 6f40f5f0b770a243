package httpgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
)

// Actor issues backend calls on behalf of a single identity token.
type Actor struct {
	client *Client
	token  string
}

var _ gateway.Backend = (*Actor)(nil)

func (a *Actor) CreateUserProfile(ctx context.Context, profile model.ShortProfile) error {
	err := a.client.DoJSON(ctx, a.token, "createUserProfile", http.MethodPost, "/v1/profile", ShortProfileToDTO(profile), nil)
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %w", gateway.ErrProfileExists, err)
	}
	return err
}

func (a *Actor) SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error {
	return a.client.DoJSON(ctx, a.token, "saveCallerUserProfile", http.MethodPut, "/v1/profile", UserProfileToDTO(profile), nil)
}

func (a *Actor) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	var resp ProfileResponse
	if err := a.client.DoJSON(ctx, a.token, "getCallerUserProfile", http.MethodGet, "/v1/profile", nil, &resp); err != nil {
		return nil, err
	}
	return optionalProfile(resp.Profile)
}

func (a *Actor) GetCurrentUserProfile(ctx context.Context) (model.UserProfile, error) {
	var resp ProfileResponse
	if err := a.client.DoJSON(ctx, a.token, "getCurrentUserProfile", http.MethodGet, "/v1/profile/current", nil, &resp); err != nil {
		return model.UserProfile{}, err
	}
	if resp.Profile == nil {
		return model.UserProfile{}, fmt.Errorf("getCurrentUserProfile: %w", gateway.ErrNotFound)
	}
	return UserProfileFromDTO(*resp.Profile)
}

func (a *Actor) GetUserProfile(ctx context.Context, user model.Principal) (*model.UserProfile, error) {
	var resp ProfileResponse
	path := "/v1/users/" + url.PathEscape(user.String()) + "/profile"
	if err := a.client.DoJSON(ctx, a.token, "getUserProfile", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return optionalProfile(resp.Profile)
}

func (a *Actor) GetCallerUserRole(ctx context.Context) (enums.UserRole, error) {
	var resp RoleResponse
	if err := a.client.DoJSON(ctx, a.token, "getCallerUserRole", http.MethodGet, "/v1/role", nil, &resp); err != nil {
		return "", err
	}
	role, ok := enums.ParseUserRole(resp.Role)
	if !ok {
		return "", fmt.Errorf("getCallerUserRole: unknown role %q", resp.Role)
	}
	return role, nil
}

func (a *Actor) IsCallerAdmin(ctx context.Context) (bool, error) {
	var resp IsAdminResponse
	if err := a.client.DoJSON(ctx, a.token, "isCallerAdmin", http.MethodGet, "/v1/role/admin", nil, &resp); err != nil {
		return false, err
	}
	return resp.IsAdmin, nil
}

func (a *Actor) AssignCallerUserRole(ctx context.Context, user model.Principal, role enums.UserRole) error {
	req := AssignRoleRequest{User: user.String(), Role: string(role)}
	return a.client.DoJSON(ctx, a.token, "assignCallerUserRole", http.MethodPost, "/v1/roles", req, nil)
}

func (a *Actor) GetCurrentActiveParticipants(ctx context.Context) ([]model.Participant, error) {
	var resp ParticipantsResponse
	if err := a.client.DoJSON(ctx, a.token, "getCurrentActiveParticipants", http.MethodGet, "/v1/participants/active", nil, &resp); err != nil {
		return nil, err
	}

	items := make([]model.Participant, 0, len(resp.Items))
	for _, item := range resp.Items {
		participant, err := ParticipantFromDTO(item)
		if err != nil {
			return nil, fmt.Errorf("getCurrentActiveParticipants: %w", err)
		}
		items = append(items, participant)
	}
	return items, nil
}

func (a *Actor) LikeUser(ctx context.Context, target model.Principal) (bool, error) {
	var resp LikeResponse
	if err := a.client.DoJSON(ctx, a.token, "likeUser", http.MethodPost, "/v1/likes", LikeRequest{User: target.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Matched, nil
}

func (a *Actor) GetMatches(ctx context.Context) ([]model.MatchAction, error) {
	var resp MatchesResponse
	if err := a.client.DoJSON(ctx, a.token, "getMatches", http.MethodGet, "/v1/matches", nil, &resp); err != nil {
		return nil, err
	}

	items := make([]model.MatchAction, 0, len(resp.Items))
	for _, item := range resp.Items {
		action, err := MatchActionFromDTO(item)
		if err != nil {
			return nil, fmt.Errorf("getMatches: %w", err)
		}
		items = append(items, action)
	}
	return items, nil
}

func (a *Actor) SendMessage(ctx context.Context, recipient model.Principal, content string) error {
	req := SendMessageRequest{Recipient: recipient.String(), Content: content}
	return a.client.DoJSON(ctx, a.token, "sendMessage", http.MethodPost, "/v1/messages", req, nil)
}

func (a *Actor) GetMessages(ctx context.Context) ([]model.Message, error) {
	var resp MessagesResponse
	if err := a.client.DoJSON(ctx, a.token, "getMessages", http.MethodGet, "/v1/messages", nil, &resp); err != nil {
		return nil, err
	}

	items := make([]model.Message, 0, len(resp.Items))
	for _, item := range resp.Items {
		msg, err := MessageFromDTO(item)
		if err != nil {
			return nil, fmt.Errorf("getMessages: %w", err)
		}
		items = append(items, msg)
	}
	return items, nil
}

func optionalProfile(dto *UserProfileDTO) (*model.UserProfile, error) {
	if dto == nil {
		return nil, nil
	}
	profile, err := UserProfileFromDTO(*dto)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
