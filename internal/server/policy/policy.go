// Package policy decides whether an identity may perform an action on a kind
// of resource. Three named policies cover every resource of the site.
package policy

import (
	"fmt"
	"net/http"
)

// Action is the coarse operation being attempted.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionMutate
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionMutate:
		return "mutate"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ActionForMethod classifies an HTTP method.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodPost:
		return ActionCreate
	default:
		return ActionMutate
	}
}

// Policy is a named rule mapping (identity, action) to allow or deny.
type Policy int

const (
	AdminOnly Policy = iota
	PublicReadAdminWrite
	PublicCreateAdminManage
)

func (p Policy) String() string {
	switch p {
	case AdminOnly:
		return "admin_only"
	case PublicReadAdminWrite:
		return "public_read_admin_write"
	case PublicCreateAdminManage:
		return "public_create_admin_manage"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// openTo reports whether the (policy, action) cell allows everybody. Every
// other cell requires an administrator.
func (p Policy) openTo(a Action) bool {
	switch p {
	case PublicReadAdminWrite:
		return a == ActionRead
	case PublicCreateAdminManage:
		return a == ActionCreate
	}
	return false
}

// ResourceKind names a category of protected resource.
type ResourceKind string

const (
	ResourceOffers          ResourceKind = "offers"
	ResourceApplications    ResourceKind = "applications"
	ResourceContactMessages ResourceKind = "contact_messages"
	ResourceAttachments     ResourceKind = "attachments"
	ResourceAdministrators  ResourceKind = "administrators"
	ResourceNotifications   ResourceKind = "notifications"
	ResourceFormations      ResourceKind = "formations"
	ResourcePartners        ResourceKind = "partners"
	ResourceServices        ResourceKind = "services"
	ResourceTeam            ResourceKind = "team"
	ResourceAchievements    ResourceKind = "achievements"
)

var resourcePolicies = map[ResourceKind]Policy{
	ResourceOffers:          PublicReadAdminWrite,
	ResourceFormations:      PublicReadAdminWrite,
	ResourcePartners:        PublicReadAdminWrite,
	ResourceServices:        PublicReadAdminWrite,
	ResourceTeam:            PublicReadAdminWrite,
	ResourceAchievements:    PublicReadAdminWrite,
	ResourceApplications:    PublicCreateAdminManage,
	ResourceContactMessages: PublicCreateAdminManage,
	ResourceAttachments:     PublicCreateAdminManage,
	ResourceAdministrators:  AdminOnly,
	ResourceNotifications:   AdminOnly,
}

// ForResource returns the policy guarding kind. Unknown kinds are AdminOnly.
func ForResource(kind ResourceKind) Policy {
	if p, ok := resourcePolicies[kind]; ok {
		return p
	}
	return AdminOnly
}
