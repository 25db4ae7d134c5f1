package routes

import (
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/a2f-auth/a2f/internal/control"
	"github.com/a2f-auth/a2f/internal/middleware"
)

const (
	sessionIDKey = "session_id"
	closeGrace   = time.Second
)

// RegisterAccountRoutes exposes the control channel at GET /account.
func RegisterAccountRoutes(app *fiber.App, d Deps) {
	app.Get("/account",
		middleware.AttemptLimit(d.Cache, d.Cfg.AttemptsPerMinute, d.Logger),
		func(c *fiber.Ctx) error {
			if !websocket.IsWebSocketUpgrade(c) {
				return fiber.ErrUpgradeRequired
			}
			c.Locals(sessionIDKey, middleware.RequestIDFrom(c))
			return c.Next()
		},
		websocket.New(func(conn *websocket.Conn) {
			id, _ := conn.Locals(sessionIDKey).(string)
			session := control.NewSession(id, d.Flows, d.Logger)
			session.Serve(d.BaseCtx, wsChannel{conn: conn})
		}),
	)
}

// wsChannel adapts a websocket connection to control.Channel.
type wsChannel struct {
	conn *websocket.Conn
}

func (w wsChannel) Receive() ([]byte, error) {
	_, msg, err := w.conn.ReadMessage()
	return msg, err
}

// Interrupt expires the read deadline so a blocked ReadMessage returns
// before the handler hands the connection back to fiber.
func (w wsChannel) Interrupt() error {
	return w.conn.SetReadDeadline(time.Now())
}

func (w wsChannel) Close(code int, reason string) error {
	frame := fastws.FormatCloseMessage(code, reason)
	return w.conn.WriteControl(fastws.CloseMessage, frame, time.Now().Add(closeGrace))
}
