package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection, bound to a user identity once a
// register event succeeds. ID distinguishes this connection from a later
// one for the same user.
type Client struct {
	ID             string
	Conn           *websocket.Conn
	Send           chan []byte
	UserKey        string
	ActiveChatWith string // friend key of the open conversation, if any
}

// envelope is the inbound frame; payload decoding is left to the handler.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandleWebSocket upgrades the connection and runs its read loop.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	go client.writePump()
	s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.disconnect(c)
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		s.Dispatch(c, env.Type, env.Payload)
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// forceClose kicks a replaced connection. The closed socket surfaces as a
// read error, so the regular disconnect path cleans up after it.
func (c *Client) forceClose() {
	if c.Conn != nil {
		c.Conn.Close()
	}
}
