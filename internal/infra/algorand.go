package infra

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"golang.org/x/time/rate"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/ledger"
)

// NewLedger connects to algod and the indexer and returns the facade, shared
// behind a rate limiter when cfg.RequestsPerSecond is positive.
func NewLedger(cfg config.Ledger) (ledger.Facade, error) {
	algodClient, err := algod.MakeClient(cfg.AlgodAddress, cfg.AlgodToken)
	if err != nil {
		return nil, fmt.Errorf("algod client: %w", err)
	}
	indexerClient, err := indexer.MakeClient(cfg.IndexerAddress, cfg.IndexerToken)
	if err != nil {
		return nil, fmt.Errorf("indexer client: %w", err)
	}

	var facade ledger.Facade = ledger.NewAlgorandLedger(algodClient, indexerClient)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		facade = ledger.Throttle(facade, rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst))
	}
	return facade, nil
}
