package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewboard/crewboard/internal/session"
)

func TestRemapActionURLTeamLead(t *testing.T) {
	got := RemapActionURL("/team-lead/tasks/T-1", session.RoleTeamLead)
	require.Equal(t, "/dashboard/team-lead/tasks/T-1", got)
}

func TestRemapActionURLProjectManager(t *testing.T) {
	got := RemapActionURL("/project-manager/projects/P-9", session.RoleProjectManager)
	require.Equal(t, "/dashboard/project-manager/projects/P-9", got)
}

func TestRemapActionURLIdempotent(t *testing.T) {
	once := RemapActionURL("/team-lead/tasks/T-1", session.RoleTeamLead)
	require.Equal(t, once, RemapActionURL(once, session.RoleTeamLead))
}

func TestRemapActionURLRolesWithoutPrefix(t *testing.T) {
	require.Equal(t, "/profile", RemapActionURL("/profile", session.RoleAdmin))
	require.Equal(t, "/tasks/T-1", RemapActionURL("/tasks/T-1", session.RoleEmployee))
}

func TestRemapActionURLWrongPrefixPassesThrough(t *testing.T) {
	// A project-manager link seen under a team-lead session is not rewritten.
	require.Equal(t, "/project-manager/projects/P-9",
		RemapActionURL("/project-manager/projects/P-9", session.RoleTeamLead))
}

func TestRemapActionURLEmpty(t *testing.T) {
	require.Empty(t, RemapActionURL("", session.RoleTeamLead))
}

func TestRemapActionURLNormalizesRole(t *testing.T) {
	got := RemapActionURL("/team-lead/tasks/T-1", session.Role(" TEAM_LEAD "))
	require.Equal(t, "/dashboard/team-lead/tasks/T-1", got)
}
