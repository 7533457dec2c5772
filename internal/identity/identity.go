package identity

import "context"

// User is an internal account linked to an external race-service identity.
type User struct {
	ID          string
	DisplayName string
}

// Resolver maps external race-service ids onto linked internal accounts.
// Resolve returns (nil, nil) when no linked account exists.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (*User, error)
}
