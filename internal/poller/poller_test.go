package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2f-auth/a2f/internal/identity"
	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/logging"
)

type queriedRange struct{ from, to uint64 }

// scriptedSource advances its round on every CurrentParams call according to
// rounds and records the ranges queried.
type scriptedSource struct {
	mu        sync.Mutex
	rounds    []uint64
	calls     int
	transfers []ledger.Transfer
	failOnce  map[int]bool
	queried   []queriedRange
	// lag holds history back this many rounds behind the reported round.
	lag uint64
}

func (s *scriptedSource) CurrentParams(context.Context) (ledger.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.rounds) {
		idx = len(s.rounds) - 1
	}
	s.calls++
	return ledger.Params{LastRound: s.rounds[idx]}, nil
}

func (s *scriptedSource) TransfersTo(_ context.Context, address string, from, to uint64) (ledger.TransferPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOnce[s.calls] {
		delete(s.failOnce, s.calls)
		return ledger.TransferPage{}, errors.New("indexer unavailable")
	}
	s.queried = append(s.queried, queriedRange{from, to})
	through := to
	if idx := s.calls - 1; s.lag > 0 && idx >= 0 && idx < len(s.rounds) {
		if s.rounds[idx] < s.lag {
			through = 0
		} else if indexed := s.rounds[idx] - s.lag; indexed < through {
			through = indexed
		}
	}
	page := ledger.TransferPage{Through: through}
	for _, t := range s.transfers {
		if t.To == address && t.Round >= from && t.Round <= through {
			page.Transfers = append(page.Transfers, t)
		}
	}
	return page, nil
}

func fastPoller(src Source, cycles int) *Poller {
	return New(src, Config{Period: time.Millisecond, MaxCycles: cycles}, logging.Discard())
}

func TestWindowCoversEveryRoundOnce(t *testing.T) {
	var w Window
	currents := []uint64{10, 10, 11, 15, 15, 16, 20}

	seen := map[uint64]int{}
	for _, c := range currents {
		from, to, ok := w.Next(c)
		if !ok {
			continue
		}
		require.LessOrEqual(t, w.LastChecked(), w.Current())
		for r := from; r <= to; r++ {
			seen[r]++
		}
		w.Commit(to)
	}

	for r := uint64(10); r <= 20; r++ {
		assert.Equal(t, 1, seen[r], "round %d", r)
	}
	assert.Len(t, seen, 11)
	assert.Equal(t, uint64(20), w.LastChecked())
}

func TestWindowUncommittedRangeIsRetried(t *testing.T) {
	var w Window
	from, to, ok := w.Next(5)
	require.True(t, ok)
	assert.Equal(t, uint64(5), from)
	assert.Equal(t, uint64(5), to)

	// query failed: no commit
	from, to, ok = w.Next(7)
	require.True(t, ok)
	assert.Equal(t, uint64(5), from)
	assert.Equal(t, uint64(7), to)
}

func TestAwaitReturnsFirstMatchInLedgerOrder(t *testing.T) {
	src := &scriptedSource{
		rounds: []uint64{3, 4, 5},
		transfers: []ledger.Transfer{
			{ID: "noise", Type: ledger.TypePayment, To: "me", Amount: 0, Note: []byte("x"), Round: 4},
			{ID: "first", Type: ledger.TypeAssetTransfer, From: "a", To: "me", Note: []byte("alpha"), Round: 5},
			{ID: "second", Type: ledger.TypeAssetTransfer, From: "b", To: "me", Note: []byte("beta"), Round: 5},
		},
	}

	got, err := fastPoller(src, 10).Await(context.Background(), "me", ApprovalRequest("me"))
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)
	assert.Equal(t, []queriedRange{{3, 3}, {4, 4}, {5, 5}}, src.queried)
}

func TestAwaitTimesOutAfterCycleCap(t *testing.T) {
	src := &scriptedSource{rounds: []uint64{1, 2, 3, 4, 5, 6, 7, 8}}
	var cycles int
	p := New(src, Config{Period: time.Millisecond, MaxCycles: 5, OnCycle: func(int) { cycles++ }}, logging.Discard())

	_, err := p.Await(context.Background(), "me", LoginSignal("holder", "me"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 5, cycles)
}

func TestAwaitFailedQueryDoesNotSkipRounds(t *testing.T) {
	src := &scriptedSource{
		rounds:   []uint64{10, 11, 12},
		failOnce: map[int]bool{2: true},
		transfers: []ledger.Transfer{
			{ID: "login", Type: ledger.TypeAssetTransfer, From: "holder", To: "me", Amount: 1, Round: 11},
		},
	}

	got, err := fastPoller(src, 10).Await(context.Background(), "me", LoginSignal("holder", "me"))
	require.NoError(t, err)
	assert.Equal(t, "login", got.ID)
	assert.Equal(t, []queriedRange{{10, 10}, {11, 12}}, src.queried)
}

func TestAwaitHonoursCancellation(t *testing.T) {
	src := &scriptedSource{rounds: []uint64{1}}
	p := New(src, Config{Period: 5 * time.Millisecond, MaxCycles: 1_000}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := p.Await(ctx, "me", ApprovalRequest("me"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConcurrentAwaitsAreIndependent(t *testing.T) {
	l := ledger.NewInMemory()
	holder := identity.Generate()
	ledger.SeedBalance(l, holder.Address, 1_000_000)
	assetID := ledger.SeedAsset(l, holder.Address, 10)

	verifiers := []identity.Identity{identity.Generate(), identity.Generate()}
	for _, v := range verifiers {
		ledger.SeedBalance(l, v.Address, 1_000_000)
		_, err := l.Submit(context.Background(), ledger.OptIn(v, assetID, 50))
		require.NoError(t, err)
	}

	p := fastPoller(l, 2_000)
	results := make([]ledger.Transfer, len(verifiers))
	var wg sync.WaitGroup
	for i, v := range verifiers {
		wg.Add(1)
		go func(i int, v identity.Identity) {
			defer wg.Done()
			got, err := p.Await(context.Background(), v.Address, LoginSignal(holder.Address, v.Address))
			assert.NoError(t, err)
			results[i] = got
		}(i, v)
	}

	time.Sleep(20 * time.Millisecond)
	for _, v := range verifiers {
		_, err := l.Submit(context.Background(), ledger.AssetTransfer(holder, v.Address, assetID, 1, nil, 50))
		require.NoError(t, err)
	}
	wg.Wait()

	for i, v := range verifiers {
		assert.Equal(t, v.Address, results[i].To)
		assert.Equal(t, uint64(1), results[i].Amount)
	}
}

func TestWaitForStopsWhenDone(t *testing.T) {
	p := fastPoller(&scriptedSource{rounds: []uint64{1}}, 1)
	calls := 0
	err := p.WaitFor(context.Background(), func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			return false, errors.New("transient")
		}
		return calls >= 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestAwaitRequeriesRoundsHistoryHasNotReached(t *testing.T) {
	// History trails the reported round by one: the match confirmed in
	// round 5 only becomes visible once the source reports round 6.
	src := &scriptedSource{
		rounds: []uint64{5, 5, 6, 7},
		lag:    1,
		transfers: []ledger.Transfer{
			{ID: "signal", Type: ledger.TypeAssetTransfer, From: "holder", To: "me", Amount: 1, Round: 5},
		},
	}

	got, err := fastPoller(src, 10).Await(context.Background(), "me", LoginSignal("holder", "me"))
	require.NoError(t, err)
	assert.Equal(t, "signal", got.ID)
	assert.Equal(t, []queriedRange{{5, 5}, {5, 5}, {5, 6}}, src.queried)
}

func TestAwaitFindsSignalOnLaggingLedger(t *testing.T) {
	l := ledger.NewInMemory()
	holder, self := identity.Generate(), identity.Generate()
	ledger.SeedBalance(l, holder.Address, 1_000_000)
	ledger.SeedBalance(l, self.Address, 1_000_000)
	assetID := ledger.SeedAsset(l, holder.Address, 1000)
	_, err := l.Submit(context.Background(), ledger.OptIn(self, assetID, 50))
	require.NoError(t, err)
	ledger.LagHistory(l, 2)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = l.Submit(context.Background(), ledger.AssetTransfer(holder, self.Address, assetID, 1, nil, 50))
		time.Sleep(5 * time.Millisecond)
		ledger.AdvanceRounds(l, 2)
	}()

	got, err := fastPoller(l, 2000).Await(context.Background(), self.Address, LoginSignal(holder.Address, self.Address))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Amount)
}
