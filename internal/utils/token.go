// Package utils provides the hashing and credential-minting helpers the
// handlers call out to. The core consumes snapshots; these functions mint and
// parse the signed token that carries one.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/chat-platform/internal/auth"
)

// SnapshotClaims is the JWT claim set embedding a credential snapshot. The
// registered claims carry issuance and expiry; expiry enforcement happens at
// the transport edge, never inside the stores.
type SnapshotClaims struct {
	auth.Snapshot
	jwt.RegisteredClaims
}

// SnapshotToken is a signed credential snapshot plus its expiry, as returned
// to the client.
type SnapshotToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSnapshotToken signs an HS256 token embedding the snapshot. The snapshot
// is captured as of now and stays valid, unrefreshed, until expiry.
func NewSnapshotToken(secret string, snapshot auth.Snapshot, ttlMin int) (SnapshotToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := SnapshotClaims{
		Snapshot: snapshot,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SnapshotToken{}, err
	}
	return SnapshotToken{Token: signed, Exp: exp}, nil
}

// ParseSnapshotToken verifies the signature and returns the embedded
// snapshot. Only HMAC-signed tokens are accepted.
func ParseSnapshotToken(secret, raw string) (auth.Snapshot, error) {
	var claims SnapshotClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return auth.Snapshot{}, errors.New("invalid token")
	}
	return claims.Snapshot, nil
}
