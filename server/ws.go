package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser origins are already admitted by the CORS layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

type chatMessage struct {
	Input string `json:"input"`
}

type chatReply struct {
	Response string `json:"response,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleChatSocket runs a websocket chat session: each incoming message
// is one generation request against the caller's memory store. Messages
// share the same per-user budget as POST /generate.
func (s *Server) handleChatSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[SERVER] Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	userID := c.GetString(userIDKey)
	ctx := c.Request.Context()

	for {
		var msg chatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[SERVER] Websocket read failed: %v", err)
			}
			return
		}

		if msg.Input == "" {
			s.writeChatReply(conn, chatReply{Error: "input is required"})
			continue
		}
		if !s.generateRL.allow(userID) {
			s.writeChatReply(conn, chatReply{Error: "rate limit exceeded"})
			continue
		}

		out, err := s.engine.Generate(ctx, userID, msg.Input)
		if err != nil {
			log.Printf("[SERVER] Websocket generate failed: %v", err)
			s.writeChatReply(conn, chatReply{Error: "generation failed"})
			continue
		}
		s.writeChatReply(conn, chatReply{Response: out.Response, Cached: out.FromCache})
	}
}

func (s *Server) writeChatReply(conn *websocket.Conn, reply chatReply) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(reply); err != nil {
		log.Printf("[SERVER] Websocket write failed: %v", err)
	}
}
