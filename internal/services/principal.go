package services

import "github.com/prosync/audit-task-api/internal/constants"

// Principal is the authenticated actor on whose behalf a service call runs.
// Handlers build it from the request; services never look it up globally.
type Principal struct {
	ActorID uint64
	RoleID  int
}

// IsAdmin reports whether the actor holds the administrator role.
func (p Principal) IsAdmin() bool {
	return p.RoleID == constants.AdminRoleID
}

// reviewerRoles may be assigned as task reviewers.
var reviewerRoles = []int{constants.AdminRoleID, constants.AuditorRoleID}
