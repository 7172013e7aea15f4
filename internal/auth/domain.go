package auth

import "time"

// Credential is an API key issued to a platform user. The secret is stored
// as a bcrypt hash; the clear text exists only at issue time.
type Credential struct {
	ID         string
	UserID     string
	Name       string
	SecretHash string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
