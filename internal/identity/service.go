package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
)

// ErrEmptyMnemonic is returned when no secret phrase was supplied.
var ErrEmptyMnemonic = errors.New("mnemonic is required")

// Generate creates a fresh ledger identity.
func Generate() Identity {
	acct := crypto.GenerateAccount()
	return Identity{Address: acct.Address.String(), PrivateKey: acct.PrivateKey}
}

// FromMnemonic decodes a 25 word secret phrase into an identity.
func FromMnemonic(phrase string) (Identity, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	if phrase == "" {
		return Identity{}, ErrEmptyMnemonic
	}
	sk, err := mnemonic.ToPrivateKey(phrase)
	if err != nil {
		return Identity{}, fmt.Errorf("decode mnemonic: %w", err)
	}
	acct, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return Identity{}, fmt.Errorf("derive account: %w", err)
	}
	return Identity{Address: acct.Address.String(), PrivateKey: acct.PrivateKey}, nil
}

// Mnemonic encodes the identity's private key as a secret phrase.
func (i Identity) Mnemonic() (string, error) {
	if i.IsZero() {
		return "", errors.New("identity has no key")
	}
	return mnemonic.FromPrivateKey(i.PrivateKey)
}
