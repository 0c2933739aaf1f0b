package domain

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"time"
)

// APIKeySecretPrefix is the fixed prefix of every issued secret.
// A full secret is the prefix followed by 64 hex characters.
const APIKeySecretPrefix = "nk_folder_"

// Key permissions. Every key carries at least folder:query.
const (
	PermissionFolderQuery = "folder:query"
	PermissionFolderMcp   = "folder:mcp"
)

// DefaultKeyPermissions returns the permission set granted when the
// caller does not specify one.
func DefaultKeyPermissions() []string {
	return []string{PermissionFolderQuery, PermissionFolderMcp}
}

// APIKey is a folder-scoped credential. The plaintext secret is shown
// once at issuance; only its hash and a display prefix are stored.
type APIKey struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	FolderID       string     `json:"folder_id"`
	Name           string     `json:"name"`
	KeyHash        string     `json:"-"`
	KeyPrefix      string     `json:"key_prefix"`
	Permissions    []string   `json:"permissions"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

// IssuedAPIKey pairs a stored key with its one-time plaintext secret.
type IssuedAPIKey struct {
	Key    *APIKey `json:"key"`
	Secret string  `json:"secret"`
}

// GenerateAPIKeySecret creates a new secret: nk_folder_ + 64 hex chars
// from 32 random bytes.
func GenerateAPIKeySecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return APIKeySecretPrefix + hex.EncodeToString(b)
}

// KeyDisplayPrefix derives the stored display form of a secret:
// the first eight and last four characters.
func KeyDisplayPrefix(secret string) string {
	if len(secret) < 12 {
		return secret
	}
	return secret[:8] + "..." + secret[len(secret)-4:]
}

// expirationRe matches the supported relative-expiration grammar:
// a positive integer followed by y, m, w or d.
var expirationRe = regexp.MustCompile(`^(\d+)([ymwd])$`)

// ParseExpiration converts an expiration expression into an absolute
// time. "never" (or empty) yields nil. Units: y=365 days, m=30 days,
// w=7 days, d=1 day.
func ParseExpiration(expr string, now time.Time) (*time.Time, error) {
	if expr == "" || expr == "never" {
		return nil, nil
	}

	m := expirationRe.FindStringSubmatch(expr)
	if m == nil {
		return nil, ErrInvalidArgument
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return nil, ErrInvalidArgument
	}

	var days int
	switch m[2] {
	case "y":
		days = n * 365
	case "m":
		days = n * 30
	case "w":
		days = n * 7
	case "d":
		days = n
	}

	t := now.AddDate(0, 0, days)
	return &t, nil
}

// IsExpired reports whether the key has passed its expiration time.
// Keys without an expiration never expire.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// IsUsable reports whether the key authenticates right now.
func (k *APIKey) IsUsable(now time.Time) bool {
	return k.IsActive && !k.IsExpired(now)
}

// HasPermission reports whether the key grants the given permission.
func (k *APIKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
