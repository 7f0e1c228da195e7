package auth

const (
	ScopeOpenID     = "openid"
	ScopeProfile    = "profile"
	ScopeEmail      = "email"
	ScopeFleetRead  = "fleet:read"
	ScopeFleetWrite = "fleet:write"
	ScopeAssist     = "fleet:assist"
)

// AllScopes defines the full set of scopes used by the Swagger UI / Frontend
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeFleetRead,
	ScopeFleetWrite,
	ScopeAssist,
}
