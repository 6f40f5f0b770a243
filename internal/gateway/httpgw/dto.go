package httpgw

import (
	"fmt"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
)

type ShortProfileDTO struct {
	FullName        string   `json:"full_name"`
	Age             int      `json:"age"`
	Bio             string   `json:"bio"`
	NativeLanguages []string `json:"native_languages"`
	TargetLanguages []string `json:"target_languages"`
	CurrentStatus   string   `json:"current_status"`
}

type UserProfileDTO struct {
	FullName              string   `json:"full_name"`
	Age                   int      `json:"age"`
	Bio                   string   `json:"bio"`
	Interests             []string `json:"interests"`
	NativeLanguages       []string `json:"native_languages"`
	TargetLanguages       []string `json:"target_languages"`
	CurrentStatus         string   `json:"current_status"`
	LastActiveNS          int64    `json:"last_active_ns"`
	LastMessageCheckNS    int64    `json:"last_message_check_ns"`
	SentMatchRequests     []string `json:"sent_match_requests"`
	ReceivedMatchRequests []string `json:"received_match_requests"`
	Matches               []string `json:"matches"`
}

type ProfileResponse struct {
	Profile *UserProfileDTO `json:"profile"`
}

type RoleResponse struct {
	Role string `json:"role"`
}

type IsAdminResponse struct {
	IsAdmin bool `json:"is_admin"`
}

type AssignRoleRequest struct {
	User string `json:"user"`
	Role string `json:"role"`
}

type ParticipantDTO struct {
	Principal string `json:"principal"`
	Status    string `json:"status"`
}

type ParticipantsResponse struct {
	Items []ParticipantDTO `json:"items"`
}

type LikeRequest struct {
	User string `json:"user"`
}

type LikeResponse struct {
	Matched bool `json:"matched"`
}

type MatchActionDTO struct {
	User        string `json:"user"`
	TimestampNS int64  `json:"timestamp_ns"`
}

type MatchesResponse struct {
	Items []MatchActionDTO `json:"items"`
}

type SendMessageRequest struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

type MessageDTO struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Content     string `json:"content"`
	TimestampNS int64  `json:"timestamp_ns"`
}

type MessagesResponse struct {
	Items []MessageDTO `json:"items"`
}

func ShortProfileToDTO(p model.ShortProfile) ShortProfileDTO {
	return ShortProfileDTO{
		FullName:        p.FullName,
		Age:             p.Age,
		Bio:             p.Bio,
		NativeLanguages: nonNilStrings(p.NativeLanguages),
		TargetLanguages: nonNilStrings(p.TargetLanguages),
		CurrentStatus:   string(p.CurrentStatus),
	}
}

func ShortProfileFromDTO(d ShortProfileDTO) (model.ShortProfile, error) {
	status, ok := enums.ParseStatus(d.CurrentStatus)
	if !ok {
		return model.ShortProfile{}, fmt.Errorf("unknown status %q", d.CurrentStatus)
	}
	return model.ShortProfile{
		FullName:        d.FullName,
		Age:             d.Age,
		Bio:             d.Bio,
		NativeLanguages: d.NativeLanguages,
		TargetLanguages: d.TargetLanguages,
		CurrentStatus:   status,
	}, nil
}

func UserProfileToDTO(p model.UserProfile) UserProfileDTO {
	return UserProfileDTO{
		FullName:              p.FullName,
		Age:                   p.Age,
		Bio:                   p.Bio,
		Interests:             nonNilStrings(p.Interests),
		NativeLanguages:       nonNilStrings(p.NativeLanguages),
		TargetLanguages:       nonNilStrings(p.TargetLanguages),
		CurrentStatus:         string(p.CurrentStatus),
		LastActiveNS:          toNanos(p.LastActive),
		LastMessageCheckNS:    toNanos(p.LastMessageCheck),
		SentMatchRequests:     principalsToText(p.SentMatchRequests),
		ReceivedMatchRequests: principalsToText(p.ReceivedMatchRequests),
		Matches:               principalsToText(p.Matches),
	}
}

func UserProfileFromDTO(d UserProfileDTO) (model.UserProfile, error) {
	status, ok := enums.ParseStatus(d.CurrentStatus)
	if !ok {
		return model.UserProfile{}, fmt.Errorf("unknown status %q", d.CurrentStatus)
	}
	sent, err := principalsFromText(d.SentMatchRequests)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("sent match requests: %w", err)
	}
	received, err := principalsFromText(d.ReceivedMatchRequests)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("received match requests: %w", err)
	}
	matches, err := principalsFromText(d.Matches)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("matches: %w", err)
	}

	return model.UserProfile{
		FullName:              d.FullName,
		Age:                   d.Age,
		Bio:                   d.Bio,
		Interests:             d.Interests,
		NativeLanguages:       d.NativeLanguages,
		TargetLanguages:       d.TargetLanguages,
		CurrentStatus:         status,
		LastActive:            fromNanos(d.LastActiveNS),
		LastMessageCheck:      fromNanos(d.LastMessageCheckNS),
		SentMatchRequests:     sent,
		ReceivedMatchRequests: received,
		Matches:               matches,
	}, nil
}

func MessageToDTO(m model.Message) MessageDTO {
	return MessageDTO{
		Sender:      m.Sender.String(),
		Recipient:   m.Recipient.String(),
		Content:     m.Content,
		TimestampNS: toNanos(m.Timestamp),
	}
}

func MessageFromDTO(d MessageDTO) (model.Message, error) {
	sender, err := model.ParsePrincipal(d.Sender)
	if err != nil {
		return model.Message{}, fmt.Errorf("sender: %w", err)
	}
	recipient, err := model.ParsePrincipal(d.Recipient)
	if err != nil {
		return model.Message{}, fmt.Errorf("recipient: %w", err)
	}
	return model.Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   d.Content,
		Timestamp: fromNanos(d.TimestampNS),
	}, nil
}

func MatchActionToDTO(m model.MatchAction) MatchActionDTO {
	return MatchActionDTO{User: m.User.String(), TimestampNS: toNanos(m.Timestamp)}
}

func MatchActionFromDTO(d MatchActionDTO) (model.MatchAction, error) {
	user, err := model.ParsePrincipal(d.User)
	if err != nil {
		return model.MatchAction{}, fmt.Errorf("match user: %w", err)
	}
	return model.MatchAction{User: user, Timestamp: fromNanos(d.TimestampNS)}, nil
}

func ParticipantToDTO(p model.Participant) ParticipantDTO {
	return ParticipantDTO{Principal: p.Principal.String(), Status: string(p.Status)}
}

func ParticipantFromDTO(d ParticipantDTO) (model.Participant, error) {
	principal, err := model.ParsePrincipal(d.Principal)
	if err != nil {
		return model.Participant{}, fmt.Errorf("participant: %w", err)
	}
	status, ok := enums.ParseStatus(d.Status)
	if !ok {
		return model.Participant{}, fmt.Errorf("participant status %q", d.Status)
	}
	return model.Participant{Principal: principal, Status: status}, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func principalsToText(in []model.Principal) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, p.String())
	}
	return out
}

func principalsFromText(in []string) ([]model.Principal, error) {
	out := make([]model.Principal, 0, len(in))
	for _, raw := range in {
		p, err := model.ParsePrincipal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
