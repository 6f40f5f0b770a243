package auth

import "github.com/google/uuid"

// NewSessionID returns a random browser session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewLoginState returns the random value that ties a provider callback to the
// login that started it.
func NewLoginState() string {
	return uuid.NewString()
}
