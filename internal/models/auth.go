package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsTeacher reports whether the caller is scoped to the offerings they teach.
func (c *JWTClaims) IsTeacher() bool {
	return c != nil && c.Role == RoleTeacher
}
