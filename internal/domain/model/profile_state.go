package model

type ProfileStateKind uint8

const (
	ProfileNotLoaded ProfileStateKind = iota
	ProfileLoading
	ProfileMissing
	ProfilePresent
)

func (k ProfileStateKind) String() string {
	switch k {
	case ProfileLoading:
		return "loading"
	case ProfileMissing:
		return "missing"
	case ProfilePresent:
		return "present"
	default:
		return "not_loaded"
	}
}

// ProfileState is the caller's own profile as known to the UI.
// A profile value is only carried by the present state.
type ProfileState struct {
	kind    ProfileStateKind
	profile UserProfile
}

func NotLoadedProfile() ProfileState {
	return ProfileState{kind: ProfileNotLoaded}
}

func LoadingProfile() ProfileState {
	return ProfileState{kind: ProfileLoading}
}

func MissingProfile() ProfileState {
	return ProfileState{kind: ProfileMissing}
}

func PresentProfile(profile UserProfile) ProfileState {
	return ProfileState{kind: ProfilePresent, profile: profile}
}

func (s ProfileState) Kind() ProfileStateKind {
	return s.kind
}

func (s ProfileState) Profile() (UserProfile, bool) {
	if s.kind != ProfilePresent {
		return UserProfile{}, false
	}
	return s.profile, true
}

// NeedsSetup is true only when the backend confirmed there is no profile yet.
func (s ProfileState) NeedsSetup() bool {
	return s.kind == ProfileMissing
}
