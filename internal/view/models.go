package view

import (
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/services/profiles"
)

// Page is the data of a full page render.
type Page struct {
	Layout  Layout
	Content any
}

type NavItem struct {
	Label  string
	Href   string
	Active bool
}

// Layout is the shell around every page.
type Layout struct {
	Title         string
	Authenticated bool
	LoginStatus   enums.LoginStatus
	Nav           []NavItem
	Year          int
	Flash         string
	Setup         *ProfileForm
	Match         *MatchNotification
}

func NewLayout(title, path string, status enums.LoginStatus, authenticated bool, now time.Time) Layout {
	l := Layout{
		Title:         title,
		Authenticated: authenticated,
		LoginStatus:   status,
		Year:          now.Year(),
	}
	if authenticated {
		for _, item := range []NavItem{
			{Label: "Browse", Href: "/browse"},
			{Label: "Matches", Href: "/matches"},
			{Label: "Messages", Href: "/messages"},
			{Label: "Profile", Href: "/profile"},
		} {
			item.Active = item.Href == path
			l.Nav = append(l.Nav, item)
		}
	}
	return l
}

func (l Layout) LoginLabel() string {
	switch {
	case l.LoginStatus == enums.LoginInProgress:
		return "Logging in..."
	case l.Authenticated:
		return "Logout"
	default:
		return "Login"
	}
}

func (l Layout) LoginDisabled() bool {
	return l.LoginStatus == enums.LoginInProgress
}

func (l Layout) LoginAction() string {
	if l.Authenticated {
		return "/logout"
	}
	return "/login"
}

// ProfileCard shows one profile. Placeholder cards stand in for profiles that could not be loaded.
type ProfileCard struct {
	Principal       model.Principal
	Name            string
	Age             int
	Bio             string
	Interests       []string
	NativeLanguages []string
	TargetLanguages []string
	Placeholder     bool
}

func NewProfileCard(principal model.Principal, profile *model.UserProfile) ProfileCard {
	if profile == nil {
		return ProfileCard{
			Principal:   principal,
			Name:        "User",
			Bio:         "Loading profile...",
			Placeholder: true,
		}
	}
	return ProfileCard{
		Principal:       principal,
		Name:            profile.FullName,
		Age:             profile.Age,
		Bio:             profile.Bio,
		Interests:       profile.Interests,
		NativeLanguages: profile.NativeLanguages,
		TargetLanguages: profile.TargetLanguages,
	}
}

func (c ProfileCard) Initials() string {
	return Initials(c.Name)
}

// ProfileForm drives both the first-run setup dialog and the profile editor.
type ProfileForm struct {
	Editing bool
	Form    profiles.Form
	Errors  profiles.FieldErrors
	Error   string
}

func (f ProfileForm) Title() string {
	if f.Editing {
		return "Edit Your Profile"
	}
	return "Welcome to Connect!"
}

func (f ProfileForm) Action() string {
	if f.Editing {
		return "/profile/edit"
	}
	return "/profile/setup"
}

func (f ProfileForm) SubmitLabel() string {
	if f.Editing {
		return "Save Changes"
	}
	return "Create Profile"
}

func (f ProfileForm) TagFields() []TagField {
	fields := make([]TagField, 0, 3)
	if f.Editing {
		fields = append(fields, TagField{Label: "Interests", Name: profiles.FieldInterests, InputName: "interest_input", Input: f.Form.InterestInput, Values: f.Form.Interests, Error: f.Errors[profiles.FieldInterests]})
	}
	fields = append(fields,
		TagField{Label: "Native Languages", Name: profiles.FieldNativeLanguages, InputName: "native_language_input", Input: f.Form.NativeLanguageInput, Values: f.Form.NativeLanguages, Error: f.Errors[profiles.FieldNativeLanguages]},
		TagField{Label: "Languages to Learn", Name: profiles.FieldTargetLanguages, InputName: "target_language_input", Input: f.Form.TargetLanguageInput, Values: f.Form.TargetLanguages, Error: f.Errors[profiles.FieldTargetLanguages]},
	)
	return fields
}

type TagField struct {
	Label     string
	Name      string
	InputName string
	Input     string
	Values    []string
	Error     string
}

type MatchNotification struct {
	Name        string
	RemainingMS int64
}

func NewMatchNotification(name string, until, now time.Time) *MatchNotification {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return nil
	}
	return &MatchNotification{Name: name, RemainingMS: remaining.Milliseconds()}
}

type MessageView struct {
	Content string
	At      time.Time
	Mine    bool
}

// ConversationView is one open conversation with its composer.
type ConversationView struct {
	Partner      model.Principal
	PartnerName  string
	Messages     []MessageView
	Error        string
	PollInterval time.Duration
}

func NewConversationView(self, partner model.Principal, partnerName string, thread []model.Message) ConversationView {
	messages := make([]MessageView, 0, len(thread))
	for _, msg := range thread {
		messages = append(messages, MessageView{
			Content: msg.Content,
			At:      msg.Timestamp,
			Mine:    msg.Sender == self,
		})
	}
	return ConversationView{
		Partner:     partner,
		PartnerName: partnerName,
		Messages:    messages,
	}
}

func (c ConversationView) Initials() string {
	return Initials(c.PartnerName)
}

func (c ConversationView) PollMS() int64 {
	return c.PollInterval.Milliseconds()
}

type LoginRequired struct {
	Message string
}

type HomeContent struct {
	Authenticated bool
}

type BrowseContent struct {
	LoginRequired  *LoginRequired
	Loading        bool
	Error          string
	Exhausted      bool
	Remaining      int
	Card           *ProfileCard
	LikeRetryAfter int64
}

type MatchItem struct {
	Principal model.Principal
	Name      string
	Age       int
	MatchedAt time.Time
}

type MatchesContent struct {
	LoginRequired *LoginRequired
	Loading       bool
	Error         string
	Items         []MatchItem
}

type PartnerItem struct {
	Principal model.Principal
	Name      string
	Preview   string
	LastAt    time.Time
	Selected  bool
}

type MessagesContent struct {
	LoginRequired *LoginRequired
	Loading       bool
	Error         string
	Partners      []PartnerItem
	Conversation  *ConversationView
}

type ProfileContent struct {
	LoginRequired *LoginRequired
	Loading       bool
	Missing       bool
	Error         string
	Card          ProfileCard
	Matches       int
	LikesSent     int
	Admin         bool
}

type ErrorContent struct {
	Title   string
	Message string
}
