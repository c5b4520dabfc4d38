package http

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomline/roomline-server/internal/auth"
	"github.com/roomline/roomline-server/internal/chat"
)

const wsWriteTimeout = 5 * time.Second

// NewWSHandler upgrades connections and bridges them to a chat.Session.
// An identity token may arrive via the `token` query parameter or a bearer
// header; a connection without one is anonymous.
func NewWSHandler(chatSvc *chat.Service, authSvc *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ""
		token := c.Query("token")
		if token == "" {
			token = bearerToken(c.GetHeader("Authorization"))
		}
		if token != "" {
			claims, err := authSvc.ValidateToken(token)
			if err != nil {
				logger.Debug().Err(err).Msg("ws token rejected")
				c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
				return
			}
			identity = claims.Login
		}

		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error().Err(err).Msg("ws accept error")
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := c.Request.Context()
		sess := chatSvc.NewSession(&wsSink{ctx: ctx, conn: conn})
		sess.OnOpen(ctx, identity)
		defer sess.OnClose()

		logger.Debug().Str("session", sess.ID()).Str("login", identity).Msg("ws session opened")

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				status := websocket.CloseStatus(err)
				if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
					logger.Debug().Err(err).Str("session", sess.ID()).Msg("ws read ended")
				}
				break
			}
			if typ != websocket.MessageText {
				continue
			}
			sess.OnMessage(ctx, string(data))
		}

		// Drain the session from the waiter sets before the socket goes
		// away so broadcasts stop targeting it; the deferred OnClose is a
		// no-op after this.
		sess.OnClose()
		conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// wsSink delivers wire lines over the websocket connection. Sends may come
// from other sessions' goroutines; the connection serializes writes.
type wsSink struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (s *wsSink) Send(line string) error {
	ctx, cancel := context.WithTimeout(s.ctx, wsWriteTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, []byte(line))
}
