package holder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/a2f-auth/a2f/internal/identity"
	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/poller"
)

const (
	// FundingURL is where a fresh testnet account can be funded.
	FundingURL = "https://bank.testnet.algorand.network/"

	TokenTotal = 1_000_000
	TokenURL   = "https://algorand.com"

	createValidRounds   = 50
	verifyValidRounds   = 50
	approvalValidRounds = 1000
)

// ErrSetup marks a first-time setup that cannot be completed.
var ErrSetup = errors.New("first time setup failed")

// Stage is the holder's position in enrollment.
type Stage int

const (
	StageUninitialized Stage = iota
	StageAwaitingFunding
	StageTokenCreated
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingFunding:
		return "awaiting_funding"
	case StageTokenCreated:
		return "token_created"
	case StageReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Holder drives the authenticating side of the handshake.
type Holder struct {
	ledger ledger.Facade
	poller *poller.Poller
	out    io.Writer
	logger *slog.Logger
	stage  Stage

	newIdentity func() identity.Identity
}

// New builds a holder. Progress messages meant for the user go to out.
func New(l ledger.Facade, p *poller.Poller, out io.Writer, logger *slog.Logger) *Holder {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{ledger: l, poller: p, out: out, logger: logger, newIdentity: identity.Generate}
}

// Stage reports the last enrollment stage reached.
func (h *Holder) Stage() Stage { return h.stage }

func (h *Holder) enter(s Stage) {
	h.logger.Debug("holder stage", slog.String("from", h.stage.String()), slog.String("to", s.String()))
	h.stage = s
}

// Enroll loads the persisted profile or runs first time setup and persists
// the result. Setup waits on funding and token creation without a cap.
func (h *Holder) Enroll(ctx context.Context, store Store) (*Profile, error) {
	st, err := store.Load()
	if err == nil {
		profile, err := ProfileFromState(st)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		h.enter(StageReady)
		return profile, nil
	}
	if !errors.Is(err, ErrNoState) {
		return nil, err
	}

	fmt.Fprintln(h.out, "Unable to locate existing user data. Running first time setup.")
	id := h.newIdentity()
	h.enter(StageAwaitingFunding)
	fmt.Fprintf(h.out, "\nPlease visit %s to fund your account.\nYour address is %s\n", FundingURL, id.Address)

	err = h.poller.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		info, err := h.ledger.AccountInfo(ctx, id.Address)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return info.Balance > 0, nil
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(h.out, "\nFunding received. Creating token.")

	if _, err := h.ledger.Submit(ctx, tokenCreation(id)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	h.enter(StageTokenCreated)

	var tokenID uint64
	err = h.poller.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		info, err := h.ledger.AccountInfo(ctx, id.Address)
		if err != nil {
			return false, err
		}
		ids := make([]uint64, 0, len(info.Assets))
		for assetID := range info.Assets {
			ids = append(ids, assetID)
		}
		if len(ids) == 0 {
			return false, nil
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		tokenID = ids[0]
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	profile := &Profile{Identity: id, TokenID: tokenID, Providers: map[string]string{}}
	st, err = profile.State()
	if err != nil {
		return nil, err
	}
	if err := store.Save(st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	h.enter(StageReady)
	fmt.Fprintln(h.out, "\nCompleted first time setup.")
	return profile, nil
}

func tokenCreation(id identity.Identity) ledger.Submission {
	unit := id.Address
	if len(unit) > 8 {
		unit = unit[:8]
	}
	return ledger.Submission{
		Kind:   ledger.KindAssetCreate,
		Sender: id,
		Asset: &ledger.AssetParams{
			Total:    TokenTotal,
			Decimals: 0,
			UnitName: unit,
			Name:     "a2f-" + unit,
			URL:      TokenURL,
		},
		ValidRounds: createValidRounds,
	}
}

// Add waits for an authorization request and, once the user consents,
// approves it and records the provider. Rejected requests are skipped and
// the wait starts over. The first acceptable request wins.
func (h *Holder) Add(ctx context.Context, profile *Profile, consent Consent) (string, error) {
	self := profile.Identity.Address
	fmt.Fprintf(h.out, "\nYour code (asset id) is: %d\nThis will be required for setup.\n\n", profile.TokenID)

	for {
		fmt.Fprint(h.out, "Waiting for provider information")
		t, err := h.poller.Await(ctx, self, poller.ApprovalRequest(self))
		fmt.Fprintln(h.out)
		if err != nil {
			return "", err
		}

		name := string(t.Note)
		ok, err := consent.Confirm(name)
		if err != nil {
			return "", err
		}
		if !ok {
			fmt.Fprintln(h.out, "Rejected.")
			h.logger.Info("provider rejected", slog.String("provider", name), slog.String("address", t.From))
			continue
		}

		approval := ledger.AssetTransfer(profile.Identity, t.From, profile.TokenID, 0, nil, approvalValidRounds)
		if _, err := h.ledger.Submit(ctx, approval); err != nil {
			return "", fmt.Errorf("approve %s: %w", name, err)
		}
		profile.Providers[name] = t.From
		fmt.Fprintf(h.out, "Authorized provider '%s'.\n", name)
		return name, nil
	}
}

// Verify sends one token unit to an authorized provider as a login signal.
func (h *Holder) Verify(ctx context.Context, profile *Profile, name string) error {
	address, ok := profile.Providers[name]
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownProvider, name)
	}
	signal := ledger.AssetTransfer(profile.Identity, address, profile.TokenID, 1, nil, verifyValidRounds)
	if _, err := h.ledger.Submit(ctx, signal); err != nil {
		return fmt.Errorf("verify %s: %w", name, err)
	}
	fmt.Fprintf(h.out, "Sent verification to '%s'.\n", name)
	return nil
}

// DebugInfo is a snapshot of the holder's account.
type DebugInfo struct {
	Network   string
	Address   string
	Mnemonic  string
	Balance   uint64
	TokenID   uint64
	Holding   uint64
	Ownership float64
}

// Debug collects account details. The mnemonic is only filled in on request.
func (h *Holder) Debug(ctx context.Context, profile *Profile, withMnemonic bool) (DebugInfo, error) {
	params, err := h.ledger.CurrentParams(ctx)
	if err != nil {
		return DebugInfo{}, err
	}
	info, err := h.ledger.AccountInfo(ctx, profile.Identity.Address)
	if err != nil {
		return DebugInfo{}, err
	}
	d := DebugInfo{
		Network: params.GenesisID,
		Address: profile.Identity.Address,
		Balance: info.Balance,
		TokenID: profile.TokenID,
		Holding: info.Assets[profile.TokenID],
	}
	d.Ownership = float64(d.Holding) / (TokenTotal / 100)
	if withMnemonic {
		if d.Mnemonic, err = profile.Identity.Mnemonic(); err != nil {
			return DebugInfo{}, err
		}
	}
	return d, nil
}

// Print writes the snapshot in the CLI's format.
func (d DebugInfo) Print(w io.Writer) {
	fmt.Fprintf(w, "Network: %s\n", d.Network)
	fmt.Fprintf(w, "Address: %s\n", d.Address)
	if d.Mnemonic != "" {
		fmt.Fprintf(w, "Mnemonic: %s\n", d.Mnemonic)
	}
	fmt.Fprintf(w, "Balance: %d microAlgos\n", d.Balance)
	fmt.Fprintf(w, "Token %d: %d units (%.4f%% of supply)\n", d.TokenID, d.Holding, d.Ownership)
}
