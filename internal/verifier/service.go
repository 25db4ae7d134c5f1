package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a2f-auth/a2f/internal/identity"
	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/metrics"
	"github.com/a2f-auth/a2f/internal/notification"
	"github.com/a2f-auth/a2f/internal/poller"
	"github.com/a2f-auth/a2f/internal/registry"
)

const (
	requestValidRounds = 1000
	returnValidRounds  = 50
	returnTimeout      = 30 * time.Second

	// MaxNameLen bounds account names in bytes so a create-success close
	// frame always carries the whole name.
	MaxNameLen = 64
)

// Service runs the verifier side of the handshake: account creation and login.
type Service struct {
	name     string
	account  identity.Identity
	ledger   ledger.Facade
	registry registry.Repository
	poller   *poller.Poller
	notifier notification.Notifier
	logger   *slog.Logger

	returns sync.WaitGroup
}

// NewService builds a verifier. name is sent to holders as the note of every
// authorization request.
func NewService(name string, account identity.Identity, ledgerBackend ledger.Facade, reg registry.Repository, p *poller.Poller, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		name:     name,
		account:  account,
		ledger:   ledgerBackend,
		registry: reg,
		poller:   p,
		notifier: notifier,
		logger:   logger,
	}
}

// Address returns the verifier's ledger address.
func (s *Service) Address() string { return s.account.Address }

// Name returns the name holders see in authorization requests.
func (s *Service) Name() string { return s.name }

// Create registers name against tokenID once the token's creator approves.
// The registry gains the entry only on success. Opt-in and request transfers
// already submitted are not rolled back when the approval times out.
func (s *Service) Create(ctx context.Context, name string, tokenID uint64) Result {
	name = strings.TrimSpace(name)
	if name == "" {
		return Failed(ReasonNameRequired)
	}
	if len(name) > MaxNameLen {
		return Failed(ReasonNameTooLong)
	}
	logger := s.logger.With(slog.String("flow", "create"), slog.String("name", name), slog.Uint64("token_id", tokenID))

	exists, err := s.registry.Exists(ctx, name)
	if err != nil {
		return Errored(fmt.Errorf("registry lookup: %w", err))
	}
	if exists {
		return Failed(ReasonNameInUse)
	}

	asset, err := s.ledger.AssetInfo(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrAssetNotFound) {
			return Failed(ReasonAssetNotFound)
		}
		return Errored(err)
	}

	if err := s.submit(ctx, ledger.OptIn(s.account, tokenID, requestValidRounds)); err != nil {
		return submitFailure("opt-in", err)
	}
	request := ledger.AssetTransfer(s.account, asset.Creator, tokenID, 0, []byte(s.name), requestValidRounds)
	if err := s.submit(ctx, request); err != nil {
		return submitFailure("authorization request", err)
	}
	logger.Info("authorization requested", slog.String("holder", asset.Creator))

	approval, err := s.poller.Await(ctx, s.account.Address, poller.ApprovalFrom(asset.Creator, s.account.Address))
	if err != nil {
		if errors.Is(err, poller.ErrTimeout) {
			logger.Info("authorization timed out")
			return Failed(ReasonTimeout)
		}
		return Errored(err)
	}

	if err := s.registry.Create(ctx, registry.Registration{Name: name, TokenID: tokenID, CreatedAt: time.Now().UTC()}); err != nil {
		if errors.Is(err, registry.ErrNameInUse) {
			return Failed(ReasonNameInUse)
		}
		return Errored(fmt.Errorf("registry create: %w", err))
	}
	logger.Info("account created", slog.String("approval_tx", approval.ID), slog.Uint64("round", approval.Round))

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindAccountCreated,
			Destination: asset.Creator,
			Body:        fmt.Sprintf("account %s created with token %d", name, tokenID),
		})
	}
	return Succeeded(name)
}

// Login waits for the holder of name's token to send one unit. On success the
// unit is sent back in the background so the next login can reuse it.
func (s *Service) Login(ctx context.Context, name string) Result {
	name = strings.TrimSpace(name)
	reg, err := s.registry.Find(ctx, name)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownAccount) {
			return Failed(ReasonUnknownAccount)
		}
		return Errored(fmt.Errorf("registry lookup: %w", err))
	}
	logger := s.logger.With(slog.String("flow", "login"), slog.String("name", name), slog.Uint64("token_id", reg.TokenID))

	asset, err := s.ledger.AssetInfo(ctx, reg.TokenID)
	if err != nil {
		if errors.Is(err, ledger.ErrAssetNotFound) {
			return Failed(ReasonAssetNotFound)
		}
		return Errored(err)
	}
	holder := asset.Creator

	signal, err := s.poller.Await(ctx, s.account.Address, poller.LoginSignal(holder, s.account.Address))
	if err != nil {
		if errors.Is(err, poller.ErrTimeout) {
			logger.Info("login timed out")
			return Failed(ReasonTimeout)
		}
		return Errored(err)
	}
	logger.Info("login confirmed", slog.String("signal_tx", signal.ID), slog.Uint64("round", signal.Round))

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindLogin,
			Destination: holder,
			Body:        fmt.Sprintf("login to %s", name),
		})
	}

	s.returns.Add(1)
	go func() {
		defer s.returns.Done()
		returnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), returnTimeout)
		defer cancel()
		if err := s.submit(returnCtx, ledger.AssetTransfer(s.account, holder, reg.TokenID, 1, nil, returnValidRounds)); err != nil {
			logger.Warn("token return failed", slog.Any("error", err))
		}
	}()

	return Succeeded(strconv.FormatUint(reg.TokenID, 10))
}

// Wait blocks until background token returns have finished.
func (s *Service) Wait() {
	s.returns.Wait()
}

func (s *Service) submit(ctx context.Context, sub ledger.Submission) error {
	_, err := s.ledger.Submit(ctx, sub)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Submissions.WithLabelValues(sub.Kind, result).Inc()
	return err
}

func submitFailure(step string, err error) Result {
	if ledger.IsSubmissionError(err) {
		return Failed(fmt.Sprintf("%s rejected: %v", step, errors.Unwrap(err)))
	}
	return Errored(fmt.Errorf("%s: %w", step, err))
}
