package interfaces

import "context"

// IdentityProvider возвращает id текущего зрителя, он же создатель новых ассетов.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}
