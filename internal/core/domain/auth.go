package domain

// Role defines user permission level within an organization
type Role string

const (
	RoleAdmin  Role = "admin"  // Manage folders, keys, retrieval settings
	RoleMember Role = "member" // Browse folders, query
)

// AuthContext contains the authenticated caller for request context.
// Tokens are minted by the external identity system; this service only
// verifies them and extracts the tenant scope.
type AuthContext struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
}

// IsAdmin checks if the authenticated user is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
	IssuedAt       int64  `json:"iat"`
	ExpiresAt      int64  `json:"exp"`
}
