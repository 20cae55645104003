package guard

// Decision is the outcome of a navigation attempt.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

func allow() Decision { return Decision{Allow: true} }

func redirect(path string) Decision { return Decision{Redirect: path} }

// Decide applies the navigation rules to route for a session in state s. The
// first matching rule wins:
//
//  1. a route that requires auth sends an anonymous session to login
//  2. a signed-in session on an entry path goes to onboarding or its dashboard
//  3. an incomplete session goes to onboarding from anywhere else
//  4. a role-restricted route sends other roles to their own dashboard
//  5. everything else is allowed
//
// A nil state is treated as anonymous.
func Decide(route Route, s State) Decision {
	if s == nil {
		s = Anonymous{}
	}

	switch st := s.(type) {
	case Anonymous:
		if route.RequiresAuth {
			return redirect(PathLogin)
		}
		return allow()

	case Incomplete:
		// entry paths and every other path lead to onboarding
		if route.Path != PathOnboarding {
			return redirect(PathOnboarding)
		}
		return allow()

	case Complete:
		if route.Entry {
			return redirect(DashboardFor(st.Role))
		}
		if route.Role != "" && route.Role != st.Role {
			return redirect(DashboardFor(st.Role))
		}
		return allow()
	}

	return redirect(PathLogin)
}

// Resolve decides navigation to path against rs. Routes that redirect
// unconditionally are followed once and the target is decided in their place.
func (rs *Routes) Resolve(path string, s State) Decision {
	route := rs.Match(path)
	if route.Redirect == "" {
		return Decide(route, s)
	}

	d := Decide(rs.Match(route.Redirect), s)
	if d.Allow {
		return redirect(route.Redirect)
	}
	return d
}
