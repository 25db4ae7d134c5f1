package poller

// Window is the round cursor of one polling loop. It only moves forward and
// hands out each round exactly once. LastChecked never exceeds Current.
type Window struct {
	lastChecked uint64
	current     uint64
	started     bool
}

// Next observes the ledger's current round and returns the inclusive range
// still to query. The first call covers one round of slack: transfers that
// landed between the loop starting and its first query. ok is false when no
// round has been confirmed since the last committed range.
func (w *Window) Next(current uint64) (from, to uint64, ok bool) {
	if !w.started {
		w.started = true
		if current > 0 {
			w.lastChecked = current - 1
		}
	}
	if current > w.current {
		w.current = current
	}
	if w.current <= w.lastChecked {
		return 0, 0, false
	}
	return w.lastChecked + 1, w.current, true
}

// Commit records that rounds up to to were queried successfully.
func (w *Window) Commit(to uint64) {
	if to > w.lastChecked && to <= w.current {
		w.lastChecked = to
	}
}

// LastChecked is the highest round already queried.
func (w *Window) LastChecked() uint64 { return w.lastChecked }

// Current is the highest round observed on the ledger.
func (w *Window) Current() uint64 { return w.current }
