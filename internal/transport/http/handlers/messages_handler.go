package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	conversationsvc "github.com/caffeinepub/connect-dating/internal/services/conversations"
	remotesvc "github.com/caffeinepub/connect-dating/internal/services/remote"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type MessagesHandler struct {
	pages         *Pages
	conversations *conversationsvc.Service
	remote        *remotesvc.Service
	pollInterval  time.Duration
	logger        *zap.Logger
}

func NewMessagesHandler(pages *Pages, conversations *conversationsvc.Service, remote *remotesvc.Service, pollInterval time.Duration, logger *zap.Logger) *MessagesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &MessagesHandler{
		pages:         pages,
		conversations: conversations,
		remote:        remote,
		pollInterval:  pollInterval,
		logger:        logger,
	}
}

func (h *MessagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		h.pages.Render(w, r, view.PageMessages, "Messages", view.MessagesContent{
			LoginRequired: &view.LoginRequired{Message: "Please login to view your messages"},
		})
		return
	}

	inbox := h.conversations.Inbox(r.Context(), client, self, r.URL.Query().Get("partner"))
	content := view.MessagesContent{Loading: inbox.Loading}
	if inbox.Err != nil {
		content.Error = "Failed to load messages."
	}
	for _, partner := range inbox.Partners {
		content.Partners = append(content.Partners, view.PartnerItem{
			Principal: partner.Principal,
			Name:      inbox.Name(partner.Principal),
			Preview:   partner.Preview,
			LastAt:    partner.LastAt,
			Selected:  inbox.HasSel && partner.Principal == inbox.Selected,
		})
	}
	if inbox.HasSel {
		conversation := view.NewConversationView(self, inbox.Selected, inbox.Name(inbox.Selected), inbox.Thread)
		conversation.PollInterval = h.pollInterval
		content.Conversation = &conversation
	}
	h.pages.Render(w, r, view.PageMessages, "Messages", content)
}

// Thread renders the polled body of one conversation.
func (h *MessagesHandler) Thread(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	partner, err := model.ParsePrincipal(strings.TrimSpace(r.URL.Query().Get("partner")))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid partner")
		return
	}

	thread := h.conversations.Thread(r.Context(), client, self, partner)
	h.pages.Fragment(w, view.FragmentThread, view.NewConversationView(self, partner, "", thread))
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		h.pages.redirect(w, r, "/messages")
		return
	}
	sess := SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		sess.AddFlash("Failed to send message. Please try again.")
		h.pages.redirect(w, r, "/messages")
		return
	}

	rawPartner := strings.TrimSpace(r.PostFormValue("partner"))
	partner, err := model.ParsePrincipal(rawPartner)
	if err != nil {
		sess.AddFlash("Failed to send message. Please try again.")
		h.pages.redirect(w, r, "/messages")
		return
	}
	back := "/messages?partner=" + url.QueryEscape(partner.String())

	if err := h.remote.SendMessage(r.Context(), client, self, partner, r.PostFormValue("content")); err != nil {
		h.logger.Warn("send message", zap.String("recipient", partner.String()), zap.Error(err))
		sess.AddFlash(actionError("send message", err))
	}
	h.pages.redirect(w, r, back)
}
