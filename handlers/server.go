package handlers

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"novyn/chat"
	"novyn/models"
)

// Persister is the slice of the persistence scheduler the event handlers
// need. Every mutation marks the state dirty.
type Persister interface {
	MarkDirty()
}

// Server owns the chat state and the session registry. Every inbound
// event runs to completion under mu, one at a time, so compound
// invariants like symmetric friend sets never interleave.
type Server struct {
	mu      sync.Mutex
	state   *chat.State
	clients map[string]*Client // user key -> the single active client
	persist Persister
}

func NewServer(state *chat.State) *Server {
	return &Server{
		state:   state,
		clients: make(map[string]*Client),
	}
}

// SetPersister wires the persistence scheduler. Must be called before the
// server starts accepting connections; leaving it unset (as tests do)
// makes mutations non-durable but otherwise fully functional.
func (s *Server) SetPersister(p Persister) {
	s.persist = p
}

// Snapshot captures the current state under the server lock. Handed to the
// scheduler as its snapshot source.
func (s *Server) Snapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// RunRetention prunes expired messages and refreshes every online friend
// list when anything was dropped. Called hourly and on history fetches.
func (s *Server) RunRetention() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runRetention()
}

func (s *Server) runRetention() {
	if !s.state.Prune(time.Now()) {
		return
	}
	s.markDirty()
	for userKey := range s.clients {
		s.emitFriendList(userKey)
	}
}

func (s *Server) markDirty() {
	if s.persist != nil {
		s.persist.MarkDirty()
	}
}

func (s *Server) online(userKey string) bool {
	return s.clients[userKey] != nil
}

// sendEvent queues one framed event on a client's outbound channel. A
// client that cannot keep up has its frame dropped rather than blocking
// the event loop.
func (s *Server) sendEvent(c *Client, event string, payload any) {
	data, err := json.Marshal(models.WSMessage{Type: event, Payload: payload})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event, err)
		return
	}

	select {
	case c.Send <- data:
	default:
	}
}

func (s *Server) sendToUser(userKey, event string, payload any) {
	if client := s.clients[userKey]; client != nil {
		s.sendEvent(client, event, payload)
	}
}

// sendError maps a business-rule failure onto the wire: a taken-username
// challenge becomes username_unavailable, other auth failures auth_failed
// (with username suggestions when present), everything else the generic
// error_message notification.
func (s *Server) sendError(c *Client, err error) {
	chatErr, ok := err.(*chat.Error)
	if !ok {
		s.sendEvent(c, "error_message", map[string]string{"message": "Something went wrong."})
		return
	}

	if chatErr.Kind == chat.KindAuth {
		payload := map[string]any{"message": chatErr.Message}
		if len(chatErr.Suggestions) > 0 {
			payload["suggestions"] = chatErr.Suggestions
		}
		event := "auth_failed"
		if chatErr.Challenge {
			event = "username_unavailable"
		}
		s.sendEvent(c, event, payload)
		return
	}

	s.sendEvent(c, "error_message", map[string]string{"message": chatErr.Message})
}

func (s *Server) emitFriendList(userKey string) {
	client := s.clients[userKey]
	if client == nil {
		return
	}
	s.sendEvent(client, "friend_list_updated", map[string]any{
		"friends": s.state.FriendList(userKey, s.online),
	})
}

func (s *Server) emitRequests(userKey string) {
	client := s.clients[userKey]
	if client == nil {
		return
	}
	user := s.state.User(userKey)
	if user == nil {
		return
	}
	s.sendEvent(client, "requests_updated", map[string]any{
		"requests": s.state.RequestUsernames(user),
	})
}

func (s *Server) emitStatusToFriends(user *models.User, isOnline bool) {
	for friendKey := range user.Friends {
		s.sendToUser(friendKey, "user_status", map[string]any{
			"username": user.Username,
			"online":   isOnline,
		})
	}
}

// emitMessageStatus pushes a delivery/seen change to whichever of the two
// participants is connected. Each side sees the other under "with".
func (s *Server) emitMessageStatus(message *models.Message) {
	if message == nil || message.ID == "" {
		return
	}

	s.sendToUser(message.FromKey, "message_status", map[string]any{
		"id":          message.ID,
		"with":        message.To,
		"deliveredAt": message.DeliveredAt,
		"seenAt":      message.SeenAt,
	})
	s.sendToUser(message.ToKey, "message_status", map[string]any{
		"id":          message.ID,
		"with":        message.From,
		"deliveredAt": message.DeliveredAt,
		"seenAt":      message.SeenAt,
	})
}

// disconnect tears down one connection. Only the currently bound
// connection evicts the session: a replaced connection's late disconnect
// must not knock the new binding offline.
func (s *Server) disconnect(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(c.Send)

	if c.UserKey == "" {
		return
	}

	current := s.clients[c.UserKey]
	if current == nil || current.ID != c.ID {
		return
	}

	delete(s.clients, c.UserKey)

	user := s.state.User(c.UserKey)
	if user == nil {
		return
	}

	now := time.Now()
	user.LastSeen = &now

	for friendKey := range user.Friends {
		s.sendToUser(friendKey, "typing", map[string]any{
			"from":     user.Username,
			"isTyping": false,
		})
	}
	s.emitStatusToFriends(user, false)
	s.markDirty()
}
