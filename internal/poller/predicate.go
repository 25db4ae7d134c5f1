package poller

import "github.com/a2f-auth/a2f/internal/ledger"

// Predicate selects the transfer a polling loop is waiting for.
type Predicate func(ledger.Transfer) bool

// ApprovalRequest matches a verifier asking self to authorize it: a
// zero-amount token transfer to self carrying the verifier name as note.
// Nothing correlates the request with a particular verifier; the first match wins.
func ApprovalRequest(self string) Predicate {
	return func(t ledger.Transfer) bool {
		return t.Type == ledger.TypeAssetTransfer &&
			t.To == self &&
			t.Amount == 0 &&
			len(t.Note) > 0
	}
}

// ApprovalFrom matches the holder's zero-amount approval sent to self.
func ApprovalFrom(holder, self string) Predicate {
	return func(t ledger.Transfer) bool {
		return t.Type == ledger.TypeAssetTransfer &&
			t.From == holder &&
			t.To == self &&
			t.Amount == 0
	}
}

// LoginSignal matches the holder's one-unit login transfer sent to self.
func LoginSignal(holder, self string) Predicate {
	return func(t ledger.Transfer) bool {
		return t.Type == ledger.TypeAssetTransfer &&
			t.From == holder &&
			t.To == self &&
			t.Amount == 1
	}
}
