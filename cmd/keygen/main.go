package main

import (
	"fmt"
	"os"

	"github.com/a2f-auth/a2f/internal/holder"
	"github.com/a2f-auth/a2f/internal/identity"
)

func main() {
	id := identity.Generate()
	phrase, err := id.Mnemonic()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode mnemonic: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", id.Address)
	fmt.Printf("Mnemonic: %s\n\n", phrase)
	fmt.Printf("Fund the account at %s, then start the verifier with\n", holder.FundingURL)
	fmt.Println("PROVIDER_MNEMONIC set to the mnemonic above.")
}
