package types

import "time"

// Credentials holds stored OAuth tokens for a profile
type Credentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Tenant       string    `json:"tenant,omitempty"`
}

// Expired reports whether the access token is past its expiry with a
// safety buffer applied by the caller.
func (c *Credentials) Expired(buffer time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(buffer).After(c.Expiry)
}
