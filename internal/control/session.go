package control

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/a2f-auth/a2f/internal/metrics"
	"github.com/a2f-auth/a2f/internal/verifier"
)

// maxReasonLen keeps close reasons within a websocket control frame.
const maxReasonLen = 120

// Channel is a duplex, message-oriented connection to a front end.
type Channel interface {
	// Receive blocks for the next message. It fails once the peer is gone.
	Receive() ([]byte, error)
	// Close ends the channel with a close code and reason.
	Close(code int, reason string) error
	// Interrupt makes a pending or future Receive return an error.
	Interrupt() error
}

// Flows are the verifier operations a channel can trigger.
type Flows interface {
	Create(ctx context.Context, name string, tokenID uint64) verifier.Result
	Login(ctx context.Context, name string) verifier.Result
}

// Session serves one channel: one request, one outcome.
type Session struct {
	ID     string
	flows  Flows
	logger *slog.Logger

	once    sync.Once
	outcome Outcome
}

// NewSession prepares a session bound to flows.
func NewSession(id string, flows Flows, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{ID: id, flows: flows, logger: logger.With(slog.String("session_id", id))}
}

// Serve reads the request, runs the matching flow and closes ch with its
// outcome. A second message answers unknown-error immediately; a peer that
// goes away cancels the running flow. The returned outcome is the one sent,
// or the zero Outcome if the peer left first.
func (s *Session) Serve(ctx context.Context, ch Channel) Outcome {
	msg, err := ch.Receive()
	if err != nil {
		s.logger.Debug("channel closed before request", slog.Any("error", err))
		return Outcome{}
	}

	req, err := DecodeRequest(msg)
	if err != nil {
		return s.finish(ch, Outcome{Code: CodeUnknownError, Reason: err.Error()})
	}
	logger := s.logger.With(slog.String("type", req.Type), slog.String("name", req.Name))
	logger.Info("channel request")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Outcome, 1)
	go func() {
		results <- OutcomeFor(req.Type, s.dispatch(ctx, req))
	}()

	extra := make(chan error, 1)
	go func() {
		_, err := ch.Receive()
		extra <- err
	}()
	// The owner of ch may reuse its buffers once Serve returns, so the
	// reader has to be stopped first.
	stopReader := func() {
		if err := ch.Interrupt(); err != nil {
			logger.Debug("interrupt channel", slog.Any("error", err))
		}
		<-extra
	}

	select {
	case out := <-results:
		out = s.finish(ch, out)
		stopReader()
		return out
	case err := <-extra:
		cancel()
		if err != nil {
			logger.Info("peer left, flow cancelled", slog.Any("error", err))
			return Outcome{}
		}
		return s.finish(ch, Outcome{Code: CodeUnknownError, Reason: "unexpected message"})
	case <-ctx.Done():
		out := s.finish(ch, Outcome{Code: CodeUnknownError, Reason: "server shutting down"})
		stopReader()
		return out
	}
}

func (s *Session) dispatch(ctx context.Context, req Request) verifier.Result {
	switch req.Type {
	case TypeCreate:
		return s.flows.Create(ctx, req.Name, req.TokenID)
	case TypeLogin:
		return s.flows.Login(ctx, req.Name)
	default:
		return verifier.Errored(errors.New("unknown request type"))
	}
}

// finish sends out exactly once per session.
func (s *Session) finish(ch Channel, out Outcome) Outcome {
	s.once.Do(func() {
		s.outcome = out
		reason := truncateReason(out.Reason)
		metrics.ChannelOutcomes.WithLabelValues(out.Code.String()).Inc()
		if err := ch.Close(int(out.Code), reason); err != nil {
			s.logger.Warn("close channel", slog.Any("error", err))
		}
		s.logger.Info("channel closed", slog.String("outcome", out.Code.String()), slog.String("reason", out.Reason))
	})
	return s.outcome
}

// truncateReason shortens reason to at most maxReasonLen bytes without
// splitting a UTF-8 sequence. Invalid input is replaced so the close frame
// stays valid.
func truncateReason(reason string) string {
	if !utf8.ValidString(reason) {
		reason = strings.ToValidUTF8(reason, "?")
	}
	if len(reason) <= maxReasonLen {
		return reason
	}
	n := maxReasonLen
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}
