// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/metrics"
)

const defaultRoom = "lobby"

// Gate authenticates websocket connections before they join the hub. The
// credential check happens first; an unauthenticated connection is closed
// with a policy violation before it can see a single room event.
type Gate struct {
	hub      *Hub
	resolver *auth.Resolver
	upgrader websocket.Upgrader
}

// NewGate creates the gate in front of the hub.
func NewGate(hub *Hub, resolver *auth.Resolver) *Gate {
	return &Gate{
		hub:      hub,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth, not cookies, so cross-origin pages carry no
			// ambient credential.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and admits the client into its room. The
// token travels in the query string because browser websocket clients
// cannot set request headers.
func (g *Gate) Handle(c echo.Context) error {
	room := c.Param("room")
	if room == "" {
		room = c.QueryParam("room")
	}
	if room == "" {
		room = defaultRoom
	}

	raw := c.QueryParam("token")
	identity, authErr := g.resolver.AuthenticateToken(c.Request().Context(), raw)

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade writes its own error response.
		metrics.WSConnections.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil
	}

	if authErr != nil {
		g.reject(conn, authErr)
		return nil
	}

	metrics.WSConnections.WithLabelValues(metrics.OutcomeOK).Inc()
	client := newClient(g.hub, conn, identity.User, room)
	g.hub.join(client)

	go client.writePump()
	go client.readPump()
	return nil
}

// reject closes the freshly upgraded connection with a close frame naming
// the failure class. No hub registration has happened at this point.
func (g *Gate) reject(conn *websocket.Conn, authErr error) {
	code := websocket.ClosePolicyViolation
	reason := "authentication failed"
	outcome := metrics.OutcomeRejected
	if !auth.IsRejection(authErr) {
		code = websocket.CloseTryAgainLater
		reason = "service unavailable"
		outcome = metrics.OutcomeUnavailable
		slog.Error("ws_auth_store_unavailable", "error", authErr)
	}

	metrics.WSConnections.WithLabelValues(outcome).Inc()
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
