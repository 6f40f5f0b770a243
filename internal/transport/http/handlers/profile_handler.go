package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
	"github.com/caffeinepub/connect-dating/internal/gateway"
	profilesvc "github.com/caffeinepub/connect-dating/internal/services/profiles"
	remotesvc "github.com/caffeinepub/connect-dating/internal/services/remote"
	"github.com/caffeinepub/connect-dating/internal/view"
)

type ProfileHandler struct {
	pages    *Pages
	profiles *profilesvc.Service
	remote   *remotesvc.Service
	logger   *zap.Logger
}

func NewProfileHandler(pages *Pages, profiles *profilesvc.Service, remote *remotesvc.Service, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{pages: pages, profiles: profiles, remote: remote, logger: logger}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	self, client, ok := identity(r)
	if !ok {
		h.pages.Render(w, r, view.PageProfile, "Profile", view.ProfileContent{
			LoginRequired: &view.LoginRequired{Message: "Please login to view your profile"},
		})
		return
	}

	query := h.remote.CallerProfileQuery(r.Context(), client)
	state := remotesvc.ProfileStateOf(query)
	content := view.ProfileContent{}
	switch state.Kind() {
	case model.ProfileLoading:
		content.Loading = true
	case model.ProfileMissing:
		content.Missing = true
	case model.ProfilePresent:
		profile, _ := state.Profile()
		content.Card = view.NewProfileCard(self, &profile)
		content.Matches = len(profile.Matches)
		content.LikesSent = len(profile.SentMatchRequests)
		content.Admin = h.remote.IsCallerAdmin(r.Context(), client).Data
	default:
		content.Error = "Failed to load your profile."
		if query.Err == nil {
			content.Error = "Your profile is not available right now."
		}
	}
	h.pages.Render(w, r, view.PageProfile, "Profile", content)
}

// Edit shows the editor prefilled with the caller's profile.
func (h *ProfileHandler) Edit(w http.ResponseWriter, r *http.Request) {
	_, client, ok := identity(r)
	if !ok {
		h.pages.redirect(w, r, "/profile")
		return
	}
	current := h.remote.CurrentUserProfile(r.Context(), client)
	if !current.HasData {
		if current.Err != nil && !errors.Is(current.Err, gateway.ErrNotFound) {
			h.logger.Warn("load profile for editing", zap.Error(current.Err))
		}
		h.pages.redirect(w, r, "/profile")
		return
	}
	h.pages.Render(w, r, view.PageProfileEdit, "Edit Profile", view.ProfileForm{
		Editing: true,
		Form:    profilesvc.FormFromProfile(current.Data),
	})
}

// Update handles the editor's submit, tag add and tag remove buttons.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, client, ok := identity(r)
	if !ok {
		h.pages.redirect(w, r, "/profile")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.pages.Fail(w, r, http.StatusBadRequest, "Invalid form", "The submitted form could not be read.")
		return
	}

	form := view.ProfileForm{Editing: true, Form: profilesvc.ParseForm(r.PostForm)}
	if form.Form.ApplyAction(r.PostFormValue("action")) {
		h.pages.Render(w, r, view.PageProfileEdit, "Edit Profile", form)
		return
	}

	if err := h.profiles.Save(r.Context(), client, form.Form); err != nil {
		h.formError(&form, "save profile", err)
		h.pages.Render(w, r, view.PageProfileEdit, "Edit Profile", form)
		return
	}
	SessionFromContext(r.Context()).AddFlash("Profile updated.")
	h.pages.redirect(w, r, "/profile")
}

// Setup handles the first-run dialog. While the dialog is being filled in it is
// rendered over the home page.
func (h *ProfileHandler) Setup(w http.ResponseWriter, r *http.Request) {
	_, client, ok := identity(r)
	if !ok {
		h.pages.redirect(w, r, "/")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.pages.Fail(w, r, http.StatusBadRequest, "Invalid form", "The submitted form could not be read.")
		return
	}

	form := view.ProfileForm{Form: profilesvc.ParseForm(r.PostForm)}
	home := view.HomeContent{Authenticated: true}
	if form.Form.ApplyAction(r.PostFormValue("action")) {
		h.pages.RenderSetup(w, r, view.PageHome, "Connect", home, form)
		return
	}

	if err := h.profiles.Create(r.Context(), client, form.Form); err != nil {
		h.formError(&form, "create profile", err)
		h.pages.RenderSetup(w, r, view.PageHome, "Connect", home, form)
		return
	}
	SessionFromContext(r.Context()).AddFlash("Profile created successfully!")
	h.pages.redirect(w, r, "/browse")
}

func (h *ProfileHandler) formError(form *view.ProfileForm, action string, err error) {
	var fieldErrs profilesvc.FieldErrors
	if errors.As(err, &fieldErrs) {
		form.Errors = fieldErrs
		return
	}
	h.logger.Warn(action, zap.Error(err))
	form.Error = actionError(action, err)
}
