package guard

import (
	"sort"
	"strings"

	"github.com/beesaferoot/tenantly/internal/model"
)

const (
	PathRoot              = "/"
	PathLogin             = "/login"
	PathSignup            = "/signup"
	PathOnboarding        = "/onboarding"
	PathTenantDashboard   = "/tenant/dashboard"
	PathLandlordDashboard = "/landlord/dashboard"
)

// Route describes one navigable path. Segments starting with ':' match any
// single segment.
type Route struct {
	Path         string     `json:"path"`
	RequiresAuth bool       `json:"requires_auth"`
	Role         model.Role `json:"role,omitempty"`
	// Entry marks the sign-in paths a signed-in user is sent away from.
	Entry bool `json:"entry,omitempty"`
	// Redirect sends the navigation elsewhere before any other rule runs.
	Redirect string `json:"redirect,omitempty"`
}

func (r Route) matches(path string) bool {
	want := splitPath(r.Path)
	got := splitPath(path)
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if strings.HasPrefix(want[i], ":") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Routes is the application route table.
type Routes struct {
	routes []Route
}

func NewRoutes(routes ...Route) *Routes {
	return &Routes{routes: routes}
}

// DefaultRoutes returns the tenantly route table.
func DefaultRoutes() *Routes {
	return NewRoutes(
		Route{Path: PathRoot, Redirect: PathLogin},
		Route{Path: PathLogin, Entry: true},
		Route{Path: PathSignup, Entry: true},
		Route{Path: PathOnboarding, RequiresAuth: true},
		Route{Path: PathTenantDashboard, RequiresAuth: true, Role: model.RoleTenant},
		Route{Path: PathLandlordDashboard, RequiresAuth: true, Role: model.RoleLandlord},
		Route{Path: "/messages", RequiresAuth: true},
		Route{Path: "/messages/:id", RequiresAuth: true},
		Route{Path: "/property/:id/public"},
		Route{Path: "/property/:id/apply"},
		Route{Path: "/landlord/applications", RequiresAuth: true, Role: model.RoleLandlord},
		Route{Path: "/landlord/applications/:id", RequiresAuth: true, Role: model.RoleLandlord},
		Route{Path: "/privacy"},
		Route{Path: "/terms"},
	)
}

// Match returns the route for path. Unknown paths resolve to a public route.
func (rs *Routes) Match(path string) Route {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = PathRoot
	}
	for _, r := range rs.routes {
		if r.matches(path) {
			return r
		}
	}
	return Route{Path: path}
}

// All returns the routes sorted by path.
func (rs *Routes) All() []Route {
	out := make([]Route, len(rs.routes))
	copy(out, rs.routes)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// DashboardFor returns the dashboard of role. Anything but landlord lands on
// the tenant dashboard.
func DashboardFor(role model.Role) string {
	if role == model.RoleLandlord {
		return PathLandlordDashboard
	}
	return PathTenantDashboard
}
