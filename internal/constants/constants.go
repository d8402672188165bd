package constants

// Context and session keys
const (
	ContextKeyActorID   = "actor_id"
	ContextKeyRoleID    = "role_id"
	ContextKeyRequestID = "request_id"
	SessionCookieName   = "audit_session"
	HeaderRequestID     = "X-Request-ID"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Directory roles. Both may review tasks.
const (
	AdminRoleID   = 11
	AuditorRoleID = 22
)

// Cascade remarks. The placeholder is the deactivated entity's name.
const (
	ActorDeactivatedRemarks    = "Previous assignee %s was deactivated"
	CustomerDeactivatedRemarks = "Auto-marked as pending due to customer '%s' deactivation"
)

// DefaultCascadeMaxRetries bounds the retries of a deactivation cascade that
// lost a race with a concurrent task update.
const DefaultCascadeMaxRetries = 3
