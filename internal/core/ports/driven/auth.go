package driven

import "github.com/nexkb/nexkb-core/internal/core/domain"

// TokenVerifier extracts tenant claims from bearer tokens minted by the
// external identity system. Expired tokens surface as
// domain.ErrTokenExpired and any other rejection as
// domain.ErrTokenInvalid.
type TokenVerifier interface {
	ParseToken(token string) (*domain.TokenClaims, error)
}

// SecretHasher hashes and verifies folder API key secrets.
// This does NOT handle storage - API key rows live in APIKeyStore.
type SecretHasher interface {
	HashSecret(secret string) (string, error)
	VerifySecret(secret, hash string) bool
}
