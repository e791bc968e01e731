// Package rbac gates dashboard tabs and write actions by role.
package rbac

import (
	"strings"

	"github.com/sebasrosalesr/credit-intelligence-center/internal/credit"
)

type Role string
type Tab string
type Action string

const (
	RoleOwner    Role = "owner"
	RoleCredit   Role = "credit"
	RoleManager  Role = "manager"
	RoleView     Role = "view"
	RoleReadOnly Role = "read-only"
)

const (
	TabDashboard Tab = "dashboard"
	TabEdit      Tab = "edit"
	TabAgingHub  Tab = "aging"
	TabKPIs      Tab = "kpis"
	TabRisk      Tab = "risk"
)

const (
	ActionRead          Action = "read"
	ActionEdit          Action = "edit"
	ActionDelete        Action = "delete"
	ActionPush          Action = "push"
	ActionImportCSV     Action = "import_csv"
	ActionWriteReminder Action = "write_reminder"
	ActionAppendStatus  Action = "append_status"
	ActionWriteNote     Action = "write_note"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabDashboard, TabEdit, TabAgingHub, TabKPIs, TabRisk}

var tabRoles = map[Tab][]Role{
	TabDashboard: {RoleReadOnly, RoleCredit, RoleOwner, RoleManager, RoleView},
	TabEdit:      {RoleCredit, RoleOwner},
	TabAgingHub:  {RoleReadOnly, RoleCredit, RoleOwner},
	TabKPIs:      {RoleReadOnly, RoleCredit, RoleOwner, RoleManager, RoleView},
	TabRisk:      {RoleReadOnly, RoleCredit, RoleOwner},
}

var displayNames = map[Role]string{
	RoleOwner:    "Owner",
	RoleCredit:   "Credit Owner",
	RoleReadOnly: "Read-only",
	RoleManager:  "Manager",
	RoleView:     "Manager",
}

// Normalize lower-cases role; unknown or empty roles become read-only.
func Normalize(role string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case RoleOwner, RoleCredit, RoleManager, RoleView, RoleReadOnly:
		return r
	default:
		return RoleReadOnly
	}
}

// Resolve picks the auth claim when it grants more than read-only, else the
// first role-like field of the user_roles document.
func Resolve(claim string, doc map[string]any) Role {
	if r := Normalize(claim); r != RoleReadOnly {
		return r
	}
	for _, field := range []string{"role", "type", "access", "permission"} {
		if v := credit.Stringify(doc[field]); v != "" {
			return Normalize(v)
		}
	}
	return RoleReadOnly
}

// DisplayName is the label shown for role.
func (r Role) DisplayName() string {
	if n, ok := displayNames[r]; ok {
		return n
	}
	return string(r)
}

// CanEdit reports whether role may change records or reminders.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleCredit
}

// CanSee reports whether role may open tab.
func CanSee(role Role, tab Tab) bool {
	for _, r := range tabRoles[tab] {
		if r == role {
			return true
		}
	}
	return false
}

// VisibleTabs returns the tabs role may open, in display order.
func VisibleTabs(role Role) []Tab {
	var out []Tab
	for _, t := range Tabs {
		if CanSee(role, t) {
			out = append(out, t)
		}
	}
	return out
}

// Can reports whether role may perform action.
func Can(role Role, action Action) bool {
	switch action {
	case ActionRead:
		return true
	case ActionEdit, ActionDelete, ActionPush, ActionImportCSV, ActionWriteReminder, ActionAppendStatus, ActionWriteNote:
		return role.CanEdit()
	default:
		return false
	}
}
