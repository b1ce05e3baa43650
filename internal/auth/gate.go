package auth

import "github.com/spec-kit/maintenance-desk/internal/domain"

// Action names a role-gated operation of the bot.
type Action string

const (
	ActionReportProblem    Action = "report_problem"
	ActionCheckStatus      Action = "check_status"
	ActionInfo             Action = "info"
	ActionMyTickets        Action = "my_tickets"
	ActionChangeStatus     Action = "change_status"
	ActionAssignSpecialist Action = "assign_specialist"
	ActionListTickets      Action = "list_tickets"
	ActionSetRole          Action = "set_role"
	ActionListSpecialists  Action = "list_specialists"
)

var everyone = []domain.Role{domain.RoleResident, domain.RoleSpecialist, domain.RoleManager}

// permissions is the only place that decides who may do what.
var permissions = map[Action][]domain.Role{
	ActionReportProblem:    {domain.RoleResident, domain.RoleManager},
	ActionCheckStatus:      everyone,
	ActionInfo:             everyone,
	ActionMyTickets:        {domain.RoleSpecialist},
	ActionChangeStatus:     {domain.RoleSpecialist},
	ActionAssignSpecialist: {domain.RoleManager},
	ActionListTickets:      {domain.RoleManager},
	ActionSetRole:          {domain.RoleManager},
	ActionListSpecialists:  {domain.RoleManager},
}

// Authorize reports whether role may perform action. Unknown actions and
// roles are denied.
func Authorize(role domain.Role, action Action) bool {
	for _, allowed := range permissions[action] {
		if allowed == role {
			return true
		}
	}
	return false
}

// ActionsFor lists the actions available to role in a stable order.
func ActionsFor(role domain.Role) []Action {
	ordered := []Action{
		ActionAssignSpecialist, ActionListTickets, ActionMyTickets, ActionChangeStatus,
		ActionReportProblem, ActionCheckStatus, ActionInfo,
	}
	result := make([]Action, 0, len(ordered))
	for _, action := range ordered {
		if Authorize(role, action) {
			result = append(result, action)
		}
	}
	return result
}
