package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleDirector   UserRole = "DIRECTOR"
	RoleTeacher    UserRole = "TEACHER"
)

// ManagerRoles may create, delete and edit any pending registration.
var ManagerRoles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleDirector}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
