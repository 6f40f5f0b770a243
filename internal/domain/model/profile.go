package model

import (
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
)

type UserProfile struct {
	FullName              string
	Age                   int
	Bio                   string
	Interests             []string
	NativeLanguages       []string
	TargetLanguages       []string
	CurrentStatus         enums.Status
	LastActive            time.Time
	LastMessageCheck      time.Time
	SentMatchRequests     []Principal
	ReceivedMatchRequests []Principal
	Matches               []Principal
}

// ShortProfile is the payload for first-time profile creation.
type ShortProfile struct {
	FullName        string
	Age             int
	Bio             string
	NativeLanguages []string
	TargetLanguages []string
	CurrentStatus   enums.Status
}

func (p UserProfile) HasMatch(other Principal) bool {
	return ContainsPrincipal(p.Matches, other)
}

func (p UserProfile) Clone() UserProfile {
	out := p
	out.Interests = cloneStrings(p.Interests)
	out.NativeLanguages = cloneStrings(p.NativeLanguages)
	out.TargetLanguages = cloneStrings(p.TargetLanguages)
	out.SentMatchRequests = clonePrincipals(p.SentMatchRequests)
	out.ReceivedMatchRequests = clonePrincipals(p.ReceivedMatchRequests)
	out.Matches = clonePrincipals(p.Matches)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clonePrincipals(in []Principal) []Principal {
	if in == nil {
		return nil
	}
	out := make([]Principal, len(in))
	copy(out, in)
	return out
}
