package identity

import "crypto/ed25519"

// Identity is a ledger address together with the key that signs for it.
type Identity struct {
	Address    string
	PrivateKey ed25519.PrivateKey
}

// IsZero reports whether the identity carries no key material.
func (i Identity) IsZero() bool {
	return i.Address == "" || len(i.PrivateKey) == 0
}
