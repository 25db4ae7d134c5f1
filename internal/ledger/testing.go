package ledger

import "strconv"

// The helpers below only act on the in-memory ledger and are no-ops otherwise.

// SeedBalance sets the native balance of an account.
func SeedBalance(l Facade, address string, amount uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.account(address).balance = amount
	}
}

// SeedAsset registers an asset created by creator, who holds the full supply.
func SeedAsset(l Facade, creator string, total uint64) uint64 {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return 0
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	id := mem.nextAssetID
	mem.nextAssetID++
	mem.assets[id] = AssetInfo{ID: id, Creator: creator, Total: total}
	mem.account(creator).assets[id] = total
	return id
}

// Deliver confirms a transfer produced outside the facade in a new round,
// without validating balances.
func Deliver(l Facade, t Transfer) Transfer {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return t
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.round++
	mem.nextTxID++
	t.ID = "external-" + strconv.FormatUint(mem.nextTxID, 10)
	t.Round = mem.round
	mem.transfers = append(mem.transfers, cloneTransfer(t))
	return t
}

// AdvanceRounds confirms n empty rounds.
func AdvanceRounds(l Facade, n uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.round += n
	}
}

// BeforeSubmit installs a hook that can reject submissions by returning an error.
func BeforeSubmit(l Facade, hook func(Submission) error) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.beforeSubmit = hook
	}
}

// AfterSubmit installs a hook invoked with every confirmed submission.
func AfterSubmit(l Facade, hook func(Submission, Transfer)) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.afterSubmit = hook
	}
}

// Submissions returns the accepted submissions in order.
func Submissions(l Facade) []Submission {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return nil
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	return append([]Submission(nil), mem.submissions...)
}

// LagHistory makes TransfersTo trail the current round by n rounds.
func LagHistory(l Facade, n uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.historyLag = n
	}
}
