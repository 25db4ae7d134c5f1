package registry

import (
	"errors"
	"time"
)

var (
	// ErrNameInUse is returned when a registration already exists for the name.
	ErrNameInUse = errors.New("name in use")
	// ErrUnknownAccount is returned when no registration exists for the name.
	ErrUnknownAccount = errors.New("unknown account")
)

// Registration binds an account name to the capability token whose creator
// signs its logins.
type Registration struct {
	Name      string
	TokenID   uint64
	CreatedAt time.Time
}
