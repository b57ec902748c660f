package notify

import (
	"strings"

	"github.com/crewboard/crewboard/internal/session"
)

// The server authors action URLs under a bare role prefix for two of the
// four roles; the client router expects them under /dashboard. The rewrite
// is a pure prefix substitution and idempotent: URLs already in client form
// pass through unchanged.
var actionURLPrefixes = map[session.Role]string{
	session.RoleTeamLead:       "/team-lead/",
	session.RoleProjectManager: "/project-manager/",
}

const clientPrefix = "/dashboard"

// RemapActionURL rewrites a server-authored deep link into the client
// router's path convention for the given role.
func RemapActionURL(actionURL string, role session.Role) string {
	if actionURL == "" {
		return ""
	}
	if strings.HasPrefix(actionURL, clientPrefix+"/") {
		return actionURL
	}
	prefix, ok := actionURLPrefixes[session.NormalizeRole(string(role))]
	if !ok || !strings.HasPrefix(actionURL, prefix) {
		return actionURL
	}
	return clientPrefix + actionURL
}
