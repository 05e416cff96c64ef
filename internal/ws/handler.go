package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
)

const localMsgType = "ws_msg_type"

// Handler streams audit events; ?msg_type= narrows the subscription.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		msgType, _ := c.Locals(localMsgType).(string)
		if msgType == "all" {
			msgType = ""
		}

		client := &Client{
			hub:     hub,
			conn:    c,
			msgType: audit.EventType(msgType),
			send:    make(chan []byte, 256),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// UpgradeMiddleware rejects plain HTTP requests and captures the query
// before the connection is hijacked.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals(localMsgType, c.Query("msg_type"))
		return c.Next()
	}
}
