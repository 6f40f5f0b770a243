package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/caffeinepub/connect-dating/internal/domain/enums"
	authsvc "github.com/caffeinepub/connect-dating/internal/services/auth"
	browsesvc "github.com/caffeinepub/connect-dating/internal/services/browse"
)

const (
	sessionSIDKey    = "sid"
	sessionCursorKey = "browse_cursor"
	sessionNoticeKey = "match_notice"
)

// SessionStore keeps the browser session in a signed cookie. Identity state lives
// server-side under the session id; the cookie only carries UI state.
type SessionStore struct {
	store *sessions.CookieStore
	name  string
}

func NewSessionStore(name, secret string, maxAge time.Duration, secure bool) *SessionStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
	return &SessionStore{store: store, name: name}
}

// Load returns the request's session. An unreadable cookie starts a fresh session.
func (s *SessionStore) Load(r *http.Request) (*Session, error) {
	raw, err := s.store.Get(r, s.name)
	if raw == nil {
		raw = sessions.NewSession(s.store, s.name)
		raw.IsNew = true
	}
	return &Session{raw: raw}, err
}

// Session is one browser session: its id, browse position, pending match notice and flashes.
type Session struct {
	raw    *sessions.Session
	dirty  bool
	Status enums.LoginStatus
}

// SID returns the session id, assigning one on first use.
func (s *Session) SID() string {
	if sid, ok := s.raw.Values[sessionSIDKey].(string); ok && sid != "" {
		return sid
	}
	sid := authsvc.NewSessionID()
	s.raw.Values[sessionSIDKey] = sid
	s.dirty = true
	return sid
}

func (s *Session) Dirty() bool {
	return s.dirty || s.raw.IsNew
}

func (s *Session) Cursor() browsesvc.Cursor {
	var cursor browsesvc.Cursor
	if raw, ok := s.raw.Values[sessionCursorKey].(string); ok {
		_ = json.Unmarshal([]byte(raw), &cursor)
	}
	return cursor
}

func (s *Session) SetCursor(cursor browsesvc.Cursor) {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return
	}
	s.raw.Values[sessionCursorKey] = string(raw)
	s.dirty = true
}

// Notice returns the pending match notice, dropping it once it has expired.
func (s *Session) Notice(now time.Time) (browsesvc.MatchNotice, bool) {
	raw, ok := s.raw.Values[sessionNoticeKey].(string)
	if !ok {
		return browsesvc.MatchNotice{}, false
	}
	var notice browsesvc.MatchNotice
	if err := json.Unmarshal([]byte(raw), &notice); err != nil || !notice.Visible(now) {
		s.ClearNotice()
		return browsesvc.MatchNotice{}, false
	}
	return notice, true
}

func (s *Session) SetNotice(notice browsesvc.MatchNotice) {
	raw, err := json.Marshal(notice)
	if err != nil {
		return
	}
	s.raw.Values[sessionNoticeKey] = string(raw)
	s.dirty = true
}

func (s *Session) ClearNotice() {
	if _, ok := s.raw.Values[sessionNoticeKey]; ok {
		delete(s.raw.Values, sessionNoticeKey)
		s.dirty = true
	}
}

func (s *Session) AddFlash(message string) {
	s.raw.AddFlash(message)
	s.dirty = true
}

// Flash pops the pending flash messages, joined into one line.
func (s *Session) Flash() string {
	var out string
	for _, v := range s.raw.Flashes() {
		msg, ok := v.(string)
		if !ok || msg == "" {
			continue
		}
		s.dirty = true
		if out != "" {
			out += " "
		}
		out += msg
	}
	return out
}

// ResetUI forgets browse progress and any pending notice.
func (s *Session) ResetUI() {
	delete(s.raw.Values, sessionCursorKey)
	delete(s.raw.Values, sessionNoticeKey)
	s.dirty = true
}

// Save writes the cookie when anything changed. It must run before the response body.
func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	if !s.Dirty() || s.raw.Store() == nil {
		return nil
	}
	if err := s.raw.Save(r, w); err != nil {
		return err
	}
	s.dirty = false
	s.raw.IsNew = false
	return nil
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the request's session. Without middleware a throwaway
// session is returned so handlers never deal with nil.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionContextKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{raw: &sessions.Session{Values: map[interface{}]interface{}{}}, Status: enums.LoginIdle}
}
