package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/logging"
	"github.com/a2f-auth/a2f/internal/registry"
	"github.com/a2f-auth/a2f/internal/routes"
	"github.com/a2f-auth/a2f/internal/verifier"
)

type noFlows struct{}

func (noFlows) Create(context.Context, string, uint64) verifier.Result {
	return verifier.Failed(verifier.ReasonTimeout)
}

func (noFlows) Login(context.Context, string) verifier.Result {
	return verifier.Failed(verifier.ReasonTimeout)
}

func TestNewWiresRoutes(t *testing.T) {
	srv, err := New(config.Config{AppName: "test", Port: "0"}, routes.Deps{
		Logger:   logging.Discard(),
		Ledger:   ledger.NewInMemory(),
		Registry: registry.NewMemoryRepository(),
		Flows:    noFlows{},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestNewRejectsMissingDeps(t *testing.T) {
	if _, err := New(config.Config{}, routes.Deps{}); err == nil {
		t.Fatal("expected error for missing flows")
	}
}
