package token

// IntrospectionResult is the RFC 7662-style view of a token, derived per
// call and never persisted. When Active is false no other field is
// populated: callers cannot distinguish malformed from expired from
// revoked through this result.
type IntrospectionResult struct {
	Active   bool     `json:"active"`
	Sub      *string  `json:"sub,omitempty"`       // Subject - the identity ID
	Scopes   []string `json:"scope,omitempty"`     // Scopes granted at issuance
	Exp      *int64   `json:"exp,omitempty"`       // Expiration (unix seconds)
	Iat      *int64   `json:"iat,omitempty"`       // Issued at (unix seconds)
	Iss      *string  `json:"iss,omitempty"`       // Issuer
	TokenUse *string  `json:"token_use,omitempty"` // "access" or "refresh"
}
