package holder

import (
	"fmt"
	"strings"

	"github.com/peterh/liner"
)

// Consent asks the user whether a provider may be authorized.
type Consent interface {
	Confirm(provider string) (bool, error)
}

// ConsentFunc adapts a function to Consent.
type ConsentFunc func(provider string) (bool, error)

// Confirm calls f.
func (f ConsentFunc) Confirm(provider string) (bool, error) { return f(provider) }

// PromptConsent asks on the terminal.
type PromptConsent struct {
	line *liner.State
}

// NewPromptConsent takes over the terminal until Close is called.
func NewPromptConsent() *PromptConsent {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &PromptConsent{line: line}
}

// Confirm accepts only "y" (any case).
func (p *PromptConsent) Confirm(provider string) (bool, error) {
	answer, err := p.line.Prompt(fmt.Sprintf("Provider '%s' has initiated authorization. Accept provider? (y/n) ", provider))
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}

// Close restores the terminal.
func (p *PromptConsent) Close() error {
	return p.line.Close()
}
