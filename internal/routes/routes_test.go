package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/control"
	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/logging"
	"github.com/a2f-auth/a2f/internal/registry"
	"github.com/a2f-auth/a2f/internal/verifier"
)

type stubFlows struct{}

func (stubFlows) Create(_ context.Context, name string, tokenID uint64) verifier.Result {
	if tokenID == 0 {
		return verifier.Failed(verifier.ReasonAssetNotFound)
	}
	return verifier.Succeeded(name)
}

func (stubFlows) Login(_ context.Context, name string) verifier.Result {
	if name != "alice" {
		return verifier.Failed(verifier.ReasonUnknownAccount)
	}
	return verifier.Succeeded("42")
}

func newTestApp(t *testing.T) (*fiber.App, registry.Repository) {
	t.Helper()
	reg := registry.NewMemoryRepository()
	app := fiber.New()
	err := Setup(app, Deps{
		Cfg:      config.Config{},
		Logger:   logging.Discard(),
		Ledger:   ledger.NewInMemory(),
		Registry: reg,
		Flows:    stubFlows{},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app, reg
}

func TestSetupRequiresFlows(t *testing.T) {
	if err := Setup(fiber.New(), Deps{Registry: registry.NewMemoryRepository()}); err == nil {
		t.Fatal("expected error without flows")
	}
}

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Status map[string]string `json:"status"`
		Round  uint64            `json:"round"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status["ledger"] != "ok" || body.Status["postgres"] != "disabled" || body.Status["redis"] != "disabled" {
		t.Fatalf("unexpected status %+v", body.Status)
	}
	if body.Round == 0 {
		t.Fatalf("expected ledger round")
	}
}

func TestPingCarriesRequestID(t *testing.T) {
	app, _ := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `"request_id":"req-1"`) {
		t.Fatalf("unexpected body %s", raw)
	}
}

func TestMe(t *testing.T) {
	app, reg := newTestApp(t)
	if err := reg.Create(context.Background(), registry.Registration{Name: "alice", TokenID: 42, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bob"})
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "alice"})
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var body struct {
		Name    string `json:"name"`
		TokenID uint64 `json:"token_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Name != "alice" || body.TokenID != 42 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestMetricsExposed(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "a2f_active_polls") {
		t.Fatalf("unexpected metrics response %d", resp.StatusCode)
	}
}

func TestAccountRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/account", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

// startListener serves app on a loopback port and returns its websocket URL.
func startListener(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/account"
}

// roundTrip sends one request and returns the close frame the server answers with.
func roundTrip(t *testing.T, url, msg string) *fastws.CloseError {
	t.Helper()
	conn, _, err := fastws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteMessage(fastws.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err = conn.ReadMessage()
	var closeErr *fastws.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close frame, got %v", err)
	}
	return closeErr
}

func TestAccountChannelCloseCodes(t *testing.T) {
	app, _ := newTestApp(t)
	url := startListener(t, app)

	cases := []struct {
		name   string
		msg    string
		code   int
		reason string
	}{
		{"login success", `{"type":"login","name":"alice"}`, int(control.CodeLoginSuccess), "42"},
		{"login error", `{"type":"login","name":"bob"}`, int(control.CodeLoginError), verifier.ReasonUnknownAccount},
		{"create success", `{"type":"create","name":"carol","tokenId":7}`, int(control.CodeCreateSuccess), "carol"},
		{"create error", `{"type":"create","name":"carol","asset":0}`, int(control.CodeCreateError), verifier.ReasonAssetNotFound},
		{"unknown type", `{"type":"delete","name":"carol"}`, int(control.CodeUnknownError), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			closeErr := roundTrip(t, url, tc.msg)
			if closeErr.Code != tc.code {
				t.Fatalf("expected code %d, got %d (%s)", tc.code, closeErr.Code, closeErr.Text)
			}
			if tc.reason != "" && closeErr.Text != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, closeErr.Text)
			}
		})
	}
}

// Quick failures finish while the second-message reader is still blocked;
// run with -race to check the reader is stopped before the connection is
// released.
func TestAccountChannelSequentialQuickFailures(t *testing.T) {
	app, _ := newTestApp(t)
	url := startListener(t, app)

	for i := 0; i < 200; i++ {
		closeErr := roundTrip(t, url, `{"type":"login","name":"bob"}`)
		if closeErr.Code != int(control.CodeLoginError) {
			t.Fatalf("session %d: expected login-error, got %d (%s)", i, closeErr.Code, closeErr.Text)
		}
	}
}

func TestAccountChannelMultibyteReason(t *testing.T) {
	app, _ := newTestApp(t)
	url := startListener(t, app)

	name := "a" + strings.Repeat("é", 70)
	closeErr := roundTrip(t, url, `{"type":"create","name":"`+name+`","tokenId":7}`)
	if closeErr.Code != int(control.CodeCreateSuccess) {
		t.Fatalf("expected create-success, got %d (%s)", closeErr.Code, closeErr.Text)
	}
	if !strings.HasPrefix(name, closeErr.Text) || closeErr.Text == "" {
		t.Fatalf("unexpected reason %q", closeErr.Text)
	}
}
