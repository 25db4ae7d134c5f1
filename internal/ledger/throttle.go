package ledger

import (
	"context"

	"golang.org/x/time/rate"
)

type throttledFacade struct {
	next    Facade
	limiter *rate.Limiter
}

// Throttle wraps next so that all calls share limiter. Concurrent pollers
// hitting one node stay under its request budget.
func Throttle(next Facade, limiter *rate.Limiter) Facade {
	if limiter == nil {
		return next
	}
	return &throttledFacade{next: next, limiter: limiter}
}

func (t *throttledFacade) CurrentParams(ctx context.Context) (Params, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Params{}, err
	}
	return t.next.CurrentParams(ctx)
}

func (t *throttledFacade) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return AccountInfo{}, err
	}
	return t.next.AccountInfo(ctx, address)
}

func (t *throttledFacade) AssetInfo(ctx context.Context, assetID uint64) (AssetInfo, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return AssetInfo{}, err
	}
	return t.next.AssetInfo(ctx, assetID)
}

func (t *throttledFacade) TransfersTo(ctx context.Context, address string, fromRound, toRound uint64) (TransferPage, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return TransferPage{}, err
	}
	return t.next.TransfersTo(ctx, address, fromRound, toRound)
}

// Submissions bypass the limiter; they are rare and must not queue behind polls.
func (t *throttledFacade) Submit(ctx context.Context, sub Submission) (string, error) {
	return t.next.Submit(ctx, sub)
}
