package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	statusOK       = "ok"
	statusDisabled = "disabled"
)

// RegisterHealthRoutes reports the state of the registry database, the
// attempt-limit cache and the ledger node.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		dbStatus, redisStatus, ledgerStatus := statusDisabled, statusDisabled, statusDisabled
		if d.DB != nil {
			dbStatus = check(d.DB.Ping(ctx))
		}
		if d.Cache != nil {
			redisStatus = check(d.Cache.Ping(ctx).Err())
		}
		var round uint64
		if d.Ledger != nil {
			params, err := d.Ledger.CurrentParams(ctx)
			ledgerStatus = check(err)
			round = params.LastRound
		}

		status := http.StatusOK
		for _, s := range []string{dbStatus, redisStatus, ledgerStatus} {
			if s != statusOK && s != statusDisabled {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus, "ledger": ledgerStatus},
			"round":     round,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func check(err error) string {
	if err != nil {
		return err.Error()
	}
	return statusOK
}
