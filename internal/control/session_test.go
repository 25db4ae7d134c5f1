package control

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/a2f-auth/a2f/internal/logging"
	"github.com/a2f-auth/a2f/internal/verifier"
)

type fakeChannel struct {
	in      chan []byte
	done    chan struct{}
	once    sync.Once
	closes  int
	code    int
	reason  string
	reading atomic.Int32
	mu      sync.Mutex
}

func newFakeChannel(msgs ...string) *fakeChannel {
	ch := &fakeChannel{in: make(chan []byte, 8), done: make(chan struct{})}
	for _, m := range msgs {
		ch.in <- []byte(m)
	}
	return ch
}

func (c *fakeChannel) Receive() ([]byte, error) {
	c.reading.Add(1)
	defer c.reading.Add(-1)
	select {
	case msg, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-c.done:
		return nil, errors.New("closed")
	}
}

func (c *fakeChannel) Close(code int, reason string) error {
	c.mu.Lock()
	c.closes++
	c.code, c.reason = code, reason
	c.mu.Unlock()
	return nil
}

// Interrupt unblocks readers, like a read deadline in the past.
func (c *fakeChannel) Interrupt() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type fakeFlows struct {
	create    verifier.Result
	login     verifier.Result
	block     bool
	calls     int
	cancelled chan struct{}
	gotName   string
	gotToken  uint64
	mu        sync.Mutex
}

func (f *fakeFlows) run(ctx context.Context, res verifier.Result) verifier.Result {
	if f.block {
		<-ctx.Done()
		close(f.cancelled)
		return verifier.Errored(ctx.Err())
	}
	return res
}

func (f *fakeFlows) Create(ctx context.Context, name string, tokenID uint64) verifier.Result {
	f.mu.Lock()
	f.calls++
	f.gotName, f.gotToken = name, tokenID
	f.mu.Unlock()
	return f.run(ctx, f.create)
}

func (f *fakeFlows) Login(ctx context.Context, name string) verifier.Result {
	f.mu.Lock()
	f.calls++
	f.gotName = name
	f.mu.Unlock()
	return f.run(ctx, f.login)
}

func serve(t *testing.T, flows Flows, ch *fakeChannel) Outcome {
	t.Helper()
	s := NewSession("test", flows, logging.Discard())
	done := make(chan Outcome, 1)
	go func() { done <- s.Serve(context.Background(), ch) }()
	select {
	case out := <-done:
		return out
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish")
		return Outcome{}
	}
}

func TestSessionOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		msg    string
		flows  *fakeFlows
		code   Code
		reason string
	}{
		{"create success", `{"type":"create","name":"alice","tokenId":42}`, &fakeFlows{create: verifier.Succeeded("alice")}, CodeCreateSuccess, "alice"},
		{"create failure", `{"type":"create","name":"alice","tokenId":42}`, &fakeFlows{create: verifier.Failed("asset not found")}, CodeCreateError, "asset not found"},
		{"login success", `{"type":"login","name":"alice"}`, &fakeFlows{login: verifier.Succeeded("42")}, CodeLoginSuccess, "42"},
		{"login timeout", `{"type":"login","name":"alice"}`, &fakeFlows{login: verifier.Failed("timeout")}, CodeLoginError, "timeout"},
		{"unclassified", `{"type":"login","name":"alice"}`, &fakeFlows{login: verifier.Errored(errors.New("boom"))}, CodeUnknownError, "boom"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := newFakeChannel(tc.msg)
			out := serve(t, tc.flows, ch)
			if out.Code != tc.code || out.Reason != tc.reason {
				t.Fatalf("expected %s %q, got %s %q", tc.code, tc.reason, out.Code, out.Reason)
			}
			if ch.code != int(tc.code) || ch.closes != 1 {
				t.Fatalf("expected one close with %d, got %d closes code %d", tc.code, ch.closes, ch.code)
			}
		})
	}
}

func TestSessionUnknownTypeSkipsFlows(t *testing.T) {
	flows := &fakeFlows{}
	ch := newFakeChannel(`{"type":"delete","name":"alice"}`)

	out := serve(t, flows, ch)
	if out.Code != CodeUnknownError {
		t.Fatalf("expected unknown-error, got %s", out.Code)
	}
	if flows.calls != 0 {
		t.Fatalf("expected no flow to run")
	}
}

func TestSessionMalformedRequest(t *testing.T) {
	out := serve(t, &fakeFlows{}, newFakeChannel(`not json`))
	if out.Code != CodeUnknownError {
		t.Fatalf("expected unknown-error, got %s", out.Code)
	}
}

func TestSessionLegacyAssetField(t *testing.T) {
	flows := &fakeFlows{create: verifier.Succeeded("alice")}
	serve(t, flows, newFakeChannel(`{"type":"create","name":"alice","asset":7}`))
	if flows.gotToken != 7 {
		t.Fatalf("expected token 7 from asset field, got %d", flows.gotToken)
	}
}

func TestSessionSecondMessageCancelsFlow(t *testing.T) {
	flows := &fakeFlows{block: true, cancelled: make(chan struct{})}
	ch := newFakeChannel(`{"type":"login","name":"alice"}`, `{"type":"login","name":"alice"}`)

	out := serve(t, flows, ch)
	if out.Code != CodeUnknownError || out.Reason != "unexpected message" {
		t.Fatalf("expected unknown-error for second message, got %s %q", out.Code, out.Reason)
	}
	select {
	case <-flows.cancelled:
	case <-time.After(time.Second):
		t.Fatalf("flow was not cancelled")
	}
	if ch.closes != 1 {
		t.Fatalf("expected exactly one close, got %d", ch.closes)
	}
}

func TestSessionPeerGoneCancelsFlow(t *testing.T) {
	flows := &fakeFlows{block: true, cancelled: make(chan struct{})}
	ch := newFakeChannel(`{"type":"create","name":"alice","tokenId":1}`)
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(ch.in)
	}()

	out := serve(t, flows, ch)
	if out != (Outcome{}) {
		t.Fatalf("expected no outcome for a departed peer, got %+v", out)
	}
	select {
	case <-flows.cancelled:
	case <-time.After(time.Second):
		t.Fatalf("flow was not cancelled")
	}
	if ch.closes != 0 {
		t.Fatalf("expected no close frame, got %d", ch.closes)
	}
}

func TestCodeString(t *testing.T) {
	if CodeCreateSuccess.String() != "create-success" || CodeUnknownError.String() != "unknown-error" {
		t.Fatalf("unexpected code names")
	}
}

func TestSessionStopsReaderBeforeReturning(t *testing.T) {
	for _, res := range []verifier.Result{
		verifier.Failed(verifier.ReasonUnknownAccount),
		verifier.Succeeded("42"),
	} {
		ch := newFakeChannel(`{"type":"login","name":"bob"}`)
		flows := &fakeFlows{login: res}

		NewSession("s", flows, logging.Discard()).Serve(context.Background(), ch)

		if n := ch.reading.Load(); n != 0 {
			t.Fatalf("receive still pending after Serve returned (%d readers)", n)
		}
	}
}

func TestSessionStopsReaderOnShutdown(t *testing.T) {
	ch := newFakeChannel(`{"type":"login","name":"alice"}`)
	flows := &fakeFlows{block: true, cancelled: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Outcome, 1)
	go func() { done <- NewSession("s", flows, logging.Discard()).Serve(ctx, ch) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case out := <-done:
		if out.Code != CodeUnknownError {
			t.Fatalf("expected unknown-error, got %v", out.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return on shutdown")
	}
	if n := ch.reading.Load(); n != 0 {
		t.Fatalf("receive still pending after shutdown (%d readers)", n)
	}
}

func TestTruncateReasonKeepsUTF8(t *testing.T) {
	long := "a" + strings.Repeat("é", 70)
	got := truncateReason(long)
	if len(got) > maxReasonLen {
		t.Fatalf("reason is %d bytes, limit %d", len(got), maxReasonLen)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated reason is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(long, got) || len(got) != maxReasonLen-1 {
		t.Fatalf("unexpected truncation %q (%d bytes)", got, len(got))
	}

	if got := truncateReason("name in use"); got != "name in use" {
		t.Fatalf("short reason changed: %q", got)
	}
	if got := truncateReason("bad\xffbyte"); !utf8.ValidString(got) {
		t.Fatalf("invalid input not repaired: %q", got)
	}
}

func TestSessionCloseReasonIsValidUTF8(t *testing.T) {
	name := "a" + strings.Repeat("é", 70)
	ch := newFakeChannel(`{"type":"create","name":"` + name + `","tokenId":7}`)
	flows := &fakeFlows{create: verifier.Succeeded(name)}

	out := NewSession("s", flows, logging.Discard()).Serve(context.Background(), ch)
	if out.Code != CodeCreateSuccess {
		t.Fatalf("expected create-success, got %v", out.Code)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if !utf8.ValidString(ch.reason) || len(ch.reason) > maxReasonLen {
		t.Fatalf("close reason not sendable: %q", ch.reason)
	}
}
