package rbac

import "fmt"

// Role represents a community-level role. Roles are ordered: each level's
// permission set is a superset of every level below it.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleDeveloperIII Role = "developer_3"
	RoleDeveloperII  Role = "developer_2"
	RoleDeveloperI   Role = "developer_1"

	// RoleViewer is the product-facing name for the lowest tier.
	RoleViewer = RoleDeveloperI
)

// Permission represents an atomic capability granted by a role.
type Permission string

const (
	PermissionViewOnly        Permission = "view_only"
	PermissionCreateTask      Permission = "task:create"
	PermissionEditTask        Permission = "task:edit"
	PermissionDeleteTask      Permission = "task:delete"
	PermissionAssignTask      Permission = "task:assign"
	PermissionCreateProject   Permission = "project:create"
	PermissionEditProject     Permission = "project:edit"
	PermissionDeleteProject   Permission = "project:delete"
	PermissionAddMember       Permission = "member:add"
	PermissionRemoveMember    Permission = "member:remove"
	PermissionChangeRole      Permission = "member:change_role"
	PermissionManageInvites   Permission = "invite:manage"
	PermissionManageSettings  Permission = "settings:manage"
	PermissionEditCommunity   Permission = "community:edit"
	PermissionDeleteCommunity Permission = "community:delete"
)

// roleRank orders roles from lowest to highest authority.
var roleRank = map[Role]int{
	RoleDeveloperI:   1,
	RoleDeveloperII:  2,
	RoleDeveloperIII: 3,
	RoleManager:      4,
	RoleAdmin:        5,
	RoleOwner:        6,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// AllRoles returns every role ordered from highest to lowest authority.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleManager, RoleDeveloperIII, RoleDeveloperII, RoleDeveloperI}
}

// permissionMatrix is the single source of truth for role capabilities.
// Each entry lists the permissions ADDED at that level; effective sets are
// built cumulatively so nesting holds by construction.
var permissionMatrix = map[Role][]Permission{
	RoleDeveloperI:   {PermissionViewOnly, PermissionCreateTask, PermissionEditTask},
	RoleDeveloperII:  {PermissionDeleteTask},
	RoleDeveloperIII: {PermissionAssignTask},
	RoleManager:      {PermissionCreateProject, PermissionEditProject, PermissionDeleteProject},
	RoleAdmin: {
		PermissionAddMember, PermissionRemoveMember, PermissionChangeRole,
		PermissionManageInvites, PermissionManageSettings,
		PermissionEditCommunity, PermissionDeleteCommunity,
	},
	RoleOwner: {},
}

// effectivePermissions caches the cumulative set per role.
var effectivePermissions = buildEffectivePermissions()

func buildEffectivePermissions() map[Role]map[Permission]struct{} {
	ordered := []Role{RoleDeveloperI, RoleDeveloperII, RoleDeveloperIII, RoleManager, RoleAdmin, RoleOwner}
	out := make(map[Role]map[Permission]struct{}, len(ordered))
	acc := make(map[Permission]struct{})
	for _, role := range ordered {
		for _, p := range permissionMatrix[role] {
			acc[p] = struct{}{}
		}
		set := make(map[Permission]struct{}, len(acc))
		for p := range acc {
			set[p] = struct{}{}
		}
		out[role] = set
	}
	return out
}

// PermissionsOf returns the full permission set for a role. It panics on an
// unknown role: callers receive roles from the membership store, so an
// unknown value is a programming error, not a runtime condition.
func PermissionsOf(role Role) []Permission {
	set, ok := effectivePermissions[role]
	if !ok {
		panic(fmt.Sprintf("rbac: unknown role %q", role))
	}
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// HasPermission reports whether the role's permission set includes p.
func HasPermission(role Role, p Permission) bool {
	set, ok := effectivePermissions[role]
	if !ok {
		panic(fmt.Sprintf("rbac: unknown role %q", role))
	}
	_, granted := set[p]
	return granted
}
