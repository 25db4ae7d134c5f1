package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/metrics"
)

const (
	// DefaultPeriod is the delay between two polling cycles.
	DefaultPeriod = 4 * time.Second
	// DefaultMaxCycles bounds a correlation wait to roughly ten minutes.
	DefaultMaxCycles = 150
)

// ErrTimeout is returned when no matching transfer shows up within the cycle cap.
var ErrTimeout = errors.New("timeout")

// Source is the part of the ledger facade a poller reads from.
type Source interface {
	CurrentParams(ctx context.Context) (ledger.Params, error)
	TransfersTo(ctx context.Context, address string, fromRound, toRound uint64) (ledger.TransferPage, error)
}

// Config tunes a Poller. Zero values fall back to the defaults.
type Config struct {
	Period    time.Duration
	MaxCycles int
	// OnCycle, if set, is called at the start of every cycle.
	OnCycle func(cycle int)
}

// Poller watches an address for transfers across a sliding round window.
// A Poller holds no per-loop state and may serve concurrent Await calls.
type Poller struct {
	source    Source
	period    time.Duration
	maxCycles int
	onCycle   func(int)
	logger    *slog.Logger
}

// New builds a poller reading from source.
func New(source Source, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = DefaultMaxCycles
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:    source,
		period:    cfg.Period,
		maxCycles: cfg.MaxCycles,
		onCycle:   cfg.OnCycle,
		logger:    logger,
	}
}

// Period returns the delay between cycles.
func (p *Poller) Period() time.Duration { return p.period }

// Await polls address until a transfer satisfies match, the cycle cap is
// reached (ErrTimeout) or ctx is done. Each call owns its own window.
func (p *Poller) Await(ctx context.Context, address string, match Predicate) (ledger.Transfer, error) {
	metrics.ActivePolls.Inc()
	defer metrics.ActivePolls.Dec()

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	var w Window
	for cycle := 1; cycle <= p.maxCycles; cycle++ {
		select {
		case <-ctx.Done():
			metrics.PollOutcomes.WithLabelValues("cancelled").Inc()
			return ledger.Transfer{}, ctx.Err()
		case <-ticker.C:
		}
		metrics.PollCycles.Inc()
		if p.onCycle != nil {
			p.onCycle(cycle)
		}

		t, found, err := p.scan(ctx, &w, address, match)
		if err != nil {
			if ctx.Err() != nil {
				metrics.PollOutcomes.WithLabelValues("cancelled").Inc()
				return ledger.Transfer{}, ctx.Err()
			}
			p.logger.Warn("poll cycle failed",
				slog.String("address", address),
				slog.Int("cycle", cycle),
				slog.Uint64("last_checked", w.LastChecked()),
				slog.Any("error", err),
			)
			continue
		}
		if found {
			metrics.PollOutcomes.WithLabelValues("match").Inc()
			return t, nil
		}
	}

	metrics.PollOutcomes.WithLabelValues("timeout").Inc()
	return ledger.Transfer{}, ErrTimeout
}

// scan runs one cycle. The window only advances after a successful query,
// and only as far as the history source had caught up.
func (p *Poller) scan(ctx context.Context, w *Window, address string, match Predicate) (ledger.Transfer, bool, error) {
	params, err := p.source.CurrentParams(ctx)
	if err != nil {
		return ledger.Transfer{}, false, err
	}
	from, to, ok := w.Next(params.LastRound)
	if !ok {
		return ledger.Transfer{}, false, nil
	}
	page, err := p.source.TransfersTo(ctx, address, from, to)
	if err != nil {
		return ledger.Transfer{}, false, err
	}
	if page.Through < from {
		p.logger.Debug("history behind ledger", slog.String("address", address), slog.Uint64("through", page.Through), slog.Uint64("want", to))
		return ledger.Transfer{}, false, nil
	}
	w.Commit(page.Through)

	for _, t := range page.Transfers {
		if match(t) {
			return t, true, nil
		}
	}
	return ledger.Transfer{}, false, nil
}

// WaitFor calls check every period until it reports done or ctx is done.
// There is no cycle cap. Errors from check are logged and retried.
func (p *Poller) WaitFor(ctx context.Context, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for cycle := 1; ; cycle++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if p.onCycle != nil {
			p.onCycle(cycle)
		}
		done, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("wait check failed", slog.Int("cycle", cycle), slog.Any("error", err))
			continue
		}
		if done {
			return nil
		}
	}
}
