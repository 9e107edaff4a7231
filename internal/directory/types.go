// Package directory manages principals and their sessions: credential
// verification, opaque session tokens, and the tenant roster itself.
package directory

// Principal roles. A non-admin principal's id doubles as its tenant id.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Principal is the public projection of an identity. Password material is
// never part of it.
type Principal struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	LastLogin   string `json:"last_login,omitempty"`
}

// IsAdmin reports whether the principal spans all tenants.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CreateInput describes a new principal.
type CreateInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
}

// Patch holds the recognized principal update fields. Nil means "leave
// unchanged". A password change generates a fresh salt and revokes the
// principal's sessions.
type Patch struct {
	Company     *string `json:"company"`
	ContactName *string `json:"contact_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
	Password    *string `json:"password"`
}
