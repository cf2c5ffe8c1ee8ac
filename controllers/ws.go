package controllers

import (
	"ResumeAI/middleware"
	"ResumeAI/pkg/chain"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

type wsStartPayload struct {
	Type    string `json:"type"`
	Query   string `json:"query"`
	ChainID string `json:"chainId"`
	Resume  string `json:"resume"`
	Mode    string `json:"mode"`
}

// ChatWS streams one chat turn over a WebSocket.
// Client protocol (JSON messages):
//
//	-> {type: "start", query: string, chainId?: string, resume?: string, mode?: "chat"|"help"}
//	<- {type: "delta", data: string}
//	<- {type: "done", answer: string, chainId: string}
//	<- {type: "error", error: string}
//	-> {type: "stop"} aborts the turn; nothing is saved
func ChatWS(db *gorm.DB, chains *chain.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Authenticate via ?token=JWT
		tokenStr := strings.TrimSpace(c.Query("token"))
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "missing token query"})
			return
		}
		claims, err := middleware.ParseToken(tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade error: %v", err)
			return
		}
		defer conn.Close()

		// Setup read limits and pong handler for keepalive
		conn.SetReadLimit(1 << 20) // 1MB
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})

		// Read exactly one start message per connection
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[ws] read message error: %v", err)
			return
		}
		var start wsStartPayload
		if err := json.Unmarshal(msgBytes, &start); err != nil || strings.ToLower(start.Type) != "start" || strings.TrimSpace(start.Query) == "" {
			_ = conn.WriteJSON(gin.H{"type": "error", "error": "invalid start payload"})
			return
		}

		req, err := turnRequest(c.Request.Context(), db, claims.UserID, start.ChainID, start.Query, start.Resume, start.Mode)
		if err != nil {
			msg := "db error"
			if errors.Is(err, errUserNotFound) {
				msg = "User not found"
			} else {
				log.Printf("[ws] load user=%d: %v", claims.UserID, err)
			}
			_ = conn.WriteJSON(gin.H{"type": "error", "error": msg})
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		release, err := middleware.AcquireUserSlot(ctx, claims.UserID)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"type": "error", "error": "too many requests"})
			return
		}
		defer release()

		// Reader goroutine to listen for {type:"stop"}
		go func() {
			for {
				if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
					cancel()
					return
				}
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					cancel()
					return
				}
				if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
					continue
				}
				var obj struct {
					Type string `json:"type"`
				}
				_ = json.Unmarshal(msg, &obj)
				if strings.ToLower(strings.TrimSpace(obj.Type)) == "stop" {
					cancel()
					return
				}
			}
		}()

		res, err := chains.SubmitTurnStream(ctx, req, func(chunk string) {
			_ = conn.WriteJSON(gin.H{"type": "delta", "data": chunk})
		})
		if err != nil {
			msg := "failed to get answer"
			switch {
			case ctx.Err() != nil:
				msg = "stopped"
			case errors.Is(err, chain.ErrEmptyQuery):
				msg = "query is required"
			case !errors.Is(err, chain.ErrProvider):
				log.Printf("[ws] storage error: %v", err)
				msg = "db error"
			}
			_ = conn.WriteJSON(gin.H{"type": "error", "error": msg})
			return
		}
		_ = conn.WriteJSON(gin.H{"type": "done", "answer": res.Reply, "chainId": res.ConversationID})
	}
}
