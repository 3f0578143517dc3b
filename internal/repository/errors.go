// Package repository contains the data access layer: one repo per entity
// family, raw SQL, and sentinel error values that let handlers distinguish
// failure kinds without inspecting strings. ErrForbidden marks a structural
// scope violation (the target exists but on a different server), ErrConflict
// a uniqueness violation or a protected deletion, ErrValidation malformed
// input that must never reach the database.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when an operation addresses a resource outside its
// stated server scope, e.g. granting a role access to a room on another
// server. Handlers translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state: a duplicate unique value, or deleting a role that still
// has members. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrValidation is returned for malformed or out-of-range input, such as an
// empty post body or a color channel outside [0,255]. Handlers translate
// this into an HTTP 400 response.
var ErrValidation = errors.New("validation failed")

// ErrBadCredentials is returned by Authenticate for both an unknown username
// and a wrong password, deliberately indistinguishable to prevent username
// enumeration. Handlers translate this into an HTTP 401 response.
var ErrBadCredentials = errors.New("invalid credentials")

// Not-found sentinels, one per entity family. All map to HTTP 404.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrServerNotFound     = errors.New("server not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrAccessNotFound     = errors.New("access grant not found")
)

// isDuplicateKey reports whether err is a MySQL duplicate-key violation
// (error 1062). Uniqueness is enforced by the storage engine's UNIQUE keys
// rather than a pre-check, so two racing creators resolve to exactly one
// winner and one ErrConflict.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
