package guard

import "github.com/beesaferoot/tenantly/internal/model"

// State is what the guard knows about the navigating session. It is one of
// Anonymous, Incomplete or Complete.
type State interface {
	state()
}

// Anonymous has no session.
type Anonymous struct{}

// Incomplete has a session but no finished onboarding. Profile is nil when
// the profile row does not exist yet.
type Incomplete struct {
	Profile *model.Profile
}

// Complete has a session and an onboarded profile.
type Complete struct {
	Role model.Role
}

func (Anonymous) state()  {}
func (Incomplete) state() {}
func (Complete) state()   {}

// StateOf classifies a session from its user and profile.
func StateOf(user *model.User, profile *model.Profile) State {
	switch {
	case user == nil:
		return Anonymous{}
	case profile == nil || !profile.OnboardingCompleted:
		return Incomplete{Profile: profile}
	default:
		return Complete{Role: profile.Role}
	}
}
