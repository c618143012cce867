// Package repository holds the MySQL and in-memory stores behind the slot
// manager and the account endpoints.  Slot lookups report slot.ErrNotFound
// and slot.ErrStale; the sentinels below cover accounts and tokens so
// handlers can tell failure scenarios apart.
package repository

import "errors"

// ErrNotFound is returned when a user lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned by Create when the username is taken.
// Handlers translate it into an HTTP 409 response.
var ErrUsernameExists = errors.New("username already exists")

// ErrTokenInvalid is returned for refresh tokens that are unknown, revoked or
// expired.
var ErrTokenInvalid = errors.New("invalid refresh token")
