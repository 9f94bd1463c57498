package models

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin may operate on every tenant.
const RoleAdmin = "admin"

// Claims is the JWT claim set accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	TenantIDs []string `json:"tenant_ids"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *Claims) GetUserID() string {
	return c.Subject
}

// CanAccessTenant reports whether the token grants access to tenantID.
func (c *Claims) CanAccessTenant(tenantID string) bool {
	return c.Role == RoleAdmin || slices.Contains(c.TenantIDs, tenantID)
}
