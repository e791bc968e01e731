package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"owner":     RoleOwner,
		" Credit ":  RoleCredit,
		"MANAGER":   RoleManager,
		"view":      RoleView,
		"read-only": RoleReadOnly,
		"":          RoleReadOnly,
		"admin":     RoleReadOnly,
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), in)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	require.Equal(t, RoleOwner, Resolve("owner", map[string]any{"role": "view"}))
	require.Equal(t, RoleCredit, Resolve("", map[string]any{"access": "credit"}))
	require.Equal(t, RoleManager, Resolve("read-only", map[string]any{"type": "Manager"}))
	require.Equal(t, RoleReadOnly, Resolve("", nil))
}

func TestTabs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role Role
		tabs []Tab
	}{
		{RoleOwner, []Tab{TabDashboard, TabEdit, TabAgingHub, TabKPIs, TabRisk}},
		{RoleCredit, []Tab{TabDashboard, TabEdit, TabAgingHub, TabKPIs, TabRisk}},
		{RoleReadOnly, []Tab{TabDashboard, TabAgingHub, TabKPIs, TabRisk}},
		{RoleManager, []Tab{TabDashboard, TabKPIs}},
		{RoleView, []Tab{TabDashboard, TabKPIs}},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			require.Equal(t, tc.tabs, VisibleTabs(tc.role))
		})
	}
}

func TestCan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{"owner push", RoleOwner, ActionPush, true},
		{"credit delete", RoleCredit, ActionDelete, true},
		{"credit reminder", RoleCredit, ActionWriteReminder, true},
		{"manager edit", RoleManager, ActionEdit, false},
		{"read-only csv", RoleReadOnly, ActionImportCSV, false},
		{"view read", RoleView, ActionRead, true},
		{"unknown action", RoleOwner, Action("nuke"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.allow, Can(tc.role, tc.action))
		})
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Credit Owner", RoleCredit.DisplayName())
	require.Equal(t, "Manager", RoleView.DisplayName())
	require.Equal(t, "custom", Role("custom").DisplayName())
}
