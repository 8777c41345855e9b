package handlers

import (
	"encoding/json"
	"strings"

	"novyn/chat"
	"novyn/models"
)

type eventHandler func(s *Server, c *Client, payload json.RawMessage)

// eventHandlers is the inbound dispatch table. Every event except
// register requires a bound identity and is ignored otherwise.
var eventHandlers = map[string]eventHandler{
	"register":        (*Server).handleRegister,
	"add_friend":      (*Server).handleAddFriend,
	"accept_friend":   (*Server).handleAcceptFriend,
	"remove_friend":   (*Server).handleRemoveFriend,
	"get_history":     (*Server).handleGetHistory,
	"private_message": (*Server).handlePrivateMessage,
	"typing":          (*Server).handleTyping,
	"delete_message":  (*Server).handleDeleteMessage,
	"react":           (*Server).handleReact,
	"update_profile":  (*Server).handleUpdateProfile,
}

// Dispatch runs the handler for one inbound event to completion under the
// server lock. Unknown events are dropped.
func (s *Server) Dispatch(c *Client, event string, payload json.RawMessage) {
	handler, ok := eventHandlers[event]
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	handler(s, c, payload)
}

// decodeName accepts the bare-string payload used by the friend and
// history events.
func decodeName(payload json.RawMessage) string {
	var name string
	if err := json.Unmarshal(payload, &name); err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

func (s *Server) handleRegister(c *Client, payload json.RawMessage) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		// Older clients send the username as a bare string.
		req.Username = decodeName(payload)
	}

	user, err := s.state.Register(req.Username, req.Password)
	if err != nil {
		s.sendError(c, err)
		return
	}

	userKey := user.Key

	// A connection re-registering as someone else releases its old binding.
	if c.UserKey != "" && c.UserKey != userKey {
		if bound := s.clients[c.UserKey]; bound != nil && bound.ID == c.ID {
			delete(s.clients, c.UserKey)
			if old := s.state.User(c.UserKey); old != nil {
				s.emitStatusToFriends(old, false)
			}
		}
	}

	c.UserKey = userKey
	c.ActiveChatWith = ""

	previous := s.clients[userKey]
	s.clients[userKey] = c

	if previous != nil && previous.ID != c.ID {
		s.sendEvent(previous, "error_message", map[string]string{
			"message": "You were signed out because this account logged in elsewhere.",
		})
		previous.forceClose()
	}

	if changed := s.state.MarkDelivered(userKey); len(changed) > 0 {
		for _, message := range changed {
			s.emitMessageStatus(message)
		}
		s.markDirty()
	}

	s.sendEvent(c, "register_success", map[string]any{
		"username": user.Username,
		"friends":  s.state.FriendList(userKey, s.online),
		"requests": s.state.RequestUsernames(user),
		"profile":  user.ToProfile(),
	})

	s.emitStatusToFriends(user, true)
	s.emitFriendList(userKey)
	s.markDirty()
}

func (s *Server) handleAddFriend(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	result, err := s.state.AddFriend(c.UserKey, decodeName(payload))
	if err != nil {
		s.sendError(c, err)
		return
	}

	me := s.state.User(c.UserKey)
	friend := result.Friend

	if result.Accepted {
		s.emitFriendList(c.UserKey)
		s.emitFriendList(friend.Key)
		s.emitRequests(c.UserKey)
		s.sendEvent(c, "friend_request_accepted", map[string]string{"by": friend.Username})
		s.sendToUser(friend.Key, "friend_request_accepted", map[string]string{"by": me.Username})
	} else {
		s.sendEvent(c, "friend_request_sent", map[string]string{"to": friend.Username})
		s.sendToUser(friend.Key, "friend_request_received", map[string]string{"from": me.Username})
		s.emitRequests(friend.Key)
	}

	s.markDirty()
}

func (s *Server) handleAcceptFriend(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	friend, err := s.state.AcceptFriend(c.UserKey, decodeName(payload))
	if err != nil {
		s.sendError(c, err)
		return
	}

	me := s.state.User(c.UserKey)

	s.emitRequests(c.UserKey)
	s.emitFriendList(c.UserKey)
	s.emitFriendList(friend.Key)
	s.sendEvent(c, "friend_request_accepted", map[string]string{"by": friend.Username})
	s.sendToUser(friend.Key, "friend_request_accepted", map[string]string{"by": me.Username})

	s.markDirty()
}

func (s *Server) handleRemoveFriend(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	friend, err := s.state.RemoveFriend(c.UserKey, decodeName(payload))
	if err != nil {
		s.sendError(c, err)
		return
	}

	me := s.state.User(c.UserKey)

	if other := s.clients[friend.Key]; other != nil && other.ActiveChatWith == c.UserKey {
		other.ActiveChatWith = ""
	}
	if c.ActiveChatWith == friend.Key {
		c.ActiveChatWith = ""
	}

	s.emitFriendList(c.UserKey)
	s.emitFriendList(friend.Key)
	s.sendEvent(c, "friend_removed", map[string]string{"username": friend.Username})
	s.sendToUser(friend.Key, "friend_removed", map[string]string{"username": me.Username})

	s.markDirty()
}

func (s *Server) handleGetHistory(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	friendName := decodeName(payload)
	friendKey := chat.NormalizeKey(friendName)

	// Prune before serving so the history never includes expired messages.
	s.runRetention()

	messages, err := s.state.History(c.UserKey, friendName)
	if err != nil {
		s.sendError(c, err)
		return
	}

	c.ActiveChatWith = friendKey

	changed, unreadChanged := s.state.MarkSeen(c.UserKey, friendKey)
	for _, message := range changed {
		s.emitMessageStatus(message)
	}
	if len(changed) > 0 || unreadChanged {
		s.markDirty()
	}
	if unreadChanged {
		s.emitFriendList(c.UserKey)
	}

	with := friendName
	if friend := s.state.User(friendKey); friend != nil {
		with = friend.Username
	}
	s.sendEvent(c, "history", map[string]any{
		"with":     with,
		"messages": messages,
	})
}

func (s *Server) handlePrivateMessage(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	var req struct {
		To      string `json:"to"`
		Text    string `json:"text"`
		ReplyTo string `json:"replyTo"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	toKey := chat.NormalizeKey(req.To)
	recipient := s.clients[toKey]
	recipientViewing := recipient != nil && recipient.ActiveChatWith == c.UserKey

	message, err := s.state.AppendMessage(c.UserKey, req.To, req.Text, req.ReplyTo, recipient != nil, recipientViewing)
	if err != nil {
		s.sendError(c, err)
		return
	}

	s.runRetention()

	// Echo to the sender for optimistic UI confirmation, then forward.
	s.sendEvent(c, "private_message", message)
	if recipient != nil {
		s.sendEvent(recipient, "private_message", message)
	}

	s.emitMessageStatus(message)
	s.emitFriendList(c.UserKey)
	s.emitFriendList(toKey)

	s.markDirty()
}

func (s *Server) handleTyping(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	var req struct {
		To       string `json:"to"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	toKey := chat.NormalizeKey(req.To)
	if !s.state.AreFriends(c.UserKey, toKey) {
		return
	}

	me := s.state.User(c.UserKey)
	s.sendToUser(toKey, "typing", map[string]any{
		"from":     me.Username,
		"isTyping": req.IsTyping,
	})
}

func (s *Server) handleDeleteMessage(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	var req struct {
		MessageID string `json:"messageId"`
		To        string `json:"to"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	message, err := s.state.DeleteMessage(c.UserKey, req.To, req.MessageID)
	if err != nil {
		s.sendError(c, err)
		return
	}

	s.sendToUser(message.FromKey, "message_deleted", map[string]string{
		"id":   message.ID,
		"with": message.To,
	})
	s.sendToUser(message.ToKey, "message_deleted", map[string]string{
		"id":   message.ID,
		"with": message.From,
	})
	s.emitFriendList(message.FromKey)
	s.emitFriendList(message.ToKey)

	s.markDirty()
}

func (s *Server) handleReact(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	var req struct {
		MessageID string `json:"messageId"`
		Emoji     string `json:"emoji"`
		To        string `json:"to"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	message, err := s.state.ToggleReaction(c.UserKey, req.To, req.MessageID, req.Emoji)
	if err != nil {
		s.sendError(c, err)
		return
	}

	reactions := message.Reactions
	if reactions == nil {
		reactions = map[string]*models.Reaction{}
	}
	s.sendToUser(message.FromKey, "reaction_updated", map[string]any{
		"id":        message.ID,
		"with":      message.To,
		"reactions": reactions,
	})
	s.sendToUser(message.ToKey, "reaction_updated", map[string]any{
		"id":        message.ID,
		"with":      message.From,
		"reactions": reactions,
	})

	s.markDirty()
}

func (s *Server) handleUpdateProfile(c *Client, payload json.RawMessage) {
	if c.UserKey == "" {
		return
	}

	var profile models.Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return
	}

	user, err := s.state.UpdateProfile(c.UserKey, profile)
	if err != nil {
		s.sendError(c, err)
		return
	}

	s.sendEvent(c, "profile_updated", map[string]any{"profile": user.ToProfile()})

	for friendKey := range user.Friends {
		s.sendToUser(friendKey, "friend_profile_updated", map[string]any{
			"username":    user.Username,
			"avatarId":    user.AvatarID,
			"displayName": user.DisplayName,
			"age":         user.Age,
			"gender":      user.Gender,
			"bio":         user.Bio,
		})
		s.emitFriendList(friendKey)
	}

	s.markDirty()
}
