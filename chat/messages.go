package chat

import (
	"sort"
	"strings"
	"time"

	"novyn/models"
)

// DeletedPlaceholder replaces the text of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted."

const summaryMaxLen = 52

// AppendMessage validates and appends a message from senderKey to the
// named recipient. recipientOnline stamps DeliveredAt immediately;
// recipientViewing additionally stamps SeenAt and keeps the recipient's
// unread counter at zero instead of incrementing it.
func (s *State) AppendMessage(senderKey, to, text, replyToID string, recipientOnline, recipientViewing bool) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("Message text is required.")
	}

	toKey := NormalizeKey(to)
	me := s.Users[senderKey]
	friend := s.Users[toKey]
	if me == nil || friend == nil || !me.Friends[toKey] {
		return nil, authorizationError("You can message only your friends.")
	}

	now := time.Now()
	message := &models.Message{
		ID:        NewMessageID(),
		From:      me.Username,
		To:        friend.Username,
		FromKey:   senderKey,
		ToKey:     toKey,
		Text:      text,
		Timestamp: now,
	}

	if replyToID != "" {
		message.ReplyTo = s.replyRef(senderKey, toKey, replyToID)
	}

	if recipientOnline {
		message.DeliveredAt = &now
	}
	if recipientViewing {
		message.DeliveredAt = &now
		message.SeenAt = &now
		setUnread(friend, senderKey, 0)
	} else {
		setUnread(friend, senderKey, friend.Unread[senderKey]+1)
	}

	key := ConversationKey(senderKey, toKey)
	s.Conversations[key] = append(s.Conversations[key], message)
	return message, nil
}

// replyRef snapshots the referenced message if it still exists in this
// conversation; unknown ids are silently dropped.
func (s *State) replyRef(a, b, id string) *models.ReplyRef {
	for _, message := range s.Conversations[ConversationKey(a, b)] {
		if message.ID == id {
			return &models.ReplyRef{
				ID:   message.ID,
				From: message.From,
				Text: compactText(message.Text),
			}
		}
	}
	return nil
}

// History returns the ordered log between the viewer and a friend.
// Opening a stranger's history is an authorization failure.
func (s *State) History(viewerKey, friendName string) ([]*models.Message, error) {
	friendKey := NormalizeKey(friendName)
	me := s.Users[viewerKey]
	if me == nil || !me.Friends[friendKey] {
		return nil, authorizationError("You can only open chats with friends.")
	}

	messages := s.Conversations[ConversationKey(viewerKey, friendKey)]
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}

// MarkSeen stamps every unseen friend->viewer message as seen (and
// delivered, if missing) and zeroes the viewer's unread counter for that
// friend. Idempotent. Returns the messages whose status changed and
// whether the unread counter moved.
func (s *State) MarkSeen(viewerKey, friendKey string) (changed []*models.Message, unreadChanged bool) {
	viewerKey = NormalizeKey(viewerKey)
	friendKey = NormalizeKey(friendKey)

	if viewer := s.Users[viewerKey]; viewer != nil {
		unreadChanged = setUnread(viewer, friendKey, 0)
	}

	for _, message := range s.Conversations[ConversationKey(viewerKey, friendKey)] {
		if message.ToKey != viewerKey || message.FromKey != friendKey || message.SeenAt != nil {
			continue
		}
		now := time.Now()
		if message.DeliveredAt == nil {
			message.DeliveredAt = &now
		}
		message.SeenAt = &now
		changed = append(changed, message)
	}

	return changed, unreadChanged
}

// MarkDelivered stamps every undelivered message addressed to the user,
// across all conversations. Called when a session comes online.
func (s *State) MarkDelivered(userKey string) []*models.Message {
	userKey = NormalizeKey(userKey)
	var changed []*models.Message

	for _, conversation := range s.Conversations {
		for _, message := range conversation {
			if message.ToKey == userKey && message.DeliveredAt == nil {
				now := time.Now()
				message.DeliveredAt = &now
				changed = append(changed, message)
			}
		}
	}

	return changed
}

// DeleteMessage soft-deletes a message: the text becomes a placeholder and
// reactions are cleared. Only the original sender may delete.
func (s *State) DeleteMessage(userKey, to, messageID string) (*models.Message, error) {
	toKey := NormalizeKey(to)
	me := s.Users[userKey]
	if me == nil || !me.Friends[toKey] {
		return nil, authorizationError("You can only manage messages in your own chats.")
	}

	message := s.findMessage(userKey, toKey, messageID)
	if message == nil {
		return nil, validationError("Message not found.")
	}
	if message.FromKey != userKey {
		return nil, authorizationError("You can delete only your own messages.")
	}
	if message.DeletedAt != nil {
		return nil, conflictError("Message already deleted.")
	}

	now := time.Now()
	message.DeletedAt = &now
	message.Text = DeletedPlaceholder
	message.Reactions = nil
	return message, nil
}

// ToggleReaction flips the user's flag for one emoji on a message and
// returns the message carrying the authoritative reaction map.
func (s *State) ToggleReaction(userKey, to, messageID, emoji string) (*models.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, validationError("Reaction emoji is required.")
	}

	toKey := NormalizeKey(to)
	me := s.Users[userKey]
	if me == nil || !me.Friends[toKey] {
		return nil, authorizationError("You can only manage messages in your own chats.")
	}

	message := s.findMessage(userKey, toKey, messageID)
	if message == nil {
		return nil, validationError("Message not found.")
	}
	if message.DeletedAt != nil {
		return nil, validationError("Cannot react to a deleted message.")
	}

	if message.Reactions == nil {
		message.Reactions = make(map[string]*models.Reaction)
	}

	reaction := message.Reactions[emoji]
	if reaction == nil {
		reaction = &models.Reaction{Users: make(map[string]bool)}
		message.Reactions[emoji] = reaction
	}

	if reaction.Users[userKey] {
		delete(reaction.Users, userKey)
		reaction.Count--
	} else {
		reaction.Users[userKey] = true
		reaction.Count++
	}

	if reaction.Count <= 0 {
		delete(message.Reactions, emoji)
	}

	return message, nil
}

// UpdateProfile overwrites the passthrough profile fields.
func (s *State) UpdateProfile(userKey string, profile models.Profile) (*models.User, error) {
	user := s.Users[userKey]
	if user == nil {
		return nil, validationError("Please reconnect and try again.")
	}

	user.AvatarID = strings.TrimSpace(profile.AvatarID)
	user.Age = strings.TrimSpace(profile.Age)
	user.Gender = strings.TrimSpace(profile.Gender)
	user.DisplayName = strings.TrimSpace(profile.DisplayName)
	user.Bio = strings.TrimSpace(profile.Bio)
	return user, nil
}

// FriendList builds the sidebar rows for a user: presence, unread count
// and last-message summary per friend, most recent conversation first.
func (s *State) FriendList(userKey string, online func(key string) bool) []models.FriendEntry {
	user := s.Users[NormalizeKey(userKey)]
	if user == nil {
		return []models.FriendEntry{}
	}

	list := make([]models.FriendEntry, 0, len(user.Friends))
	for friendKey := range user.Friends {
		friend := s.Users[friendKey]
		entry := models.FriendEntry{
			Username:    friendKey,
			Online:      online(friendKey),
			UnreadCount: user.Unread[friendKey],
		}
		if friend != nil {
			entry.Username = friend.Username
			entry.AvatarID = friend.AvatarID
			entry.DisplayName = friend.DisplayName
			entry.LastSeen = friend.LastSeen
		}

		if messages := s.Conversations[ConversationKey(userKey, friendKey)]; len(messages) > 0 {
			last := messages[len(messages)-1]
			entry.LastMessage = compactText(last.Text)
			ts := last.Timestamp
			entry.LastTimestamp = &ts
			entry.LastFrom = last.From
		}

		list = append(list, entry)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.LastTimestamp != nil && b.LastTimestamp != nil {
			return a.LastTimestamp.After(*b.LastTimestamp)
		}
		if a.LastTimestamp != nil {
			return true
		}
		if b.LastTimestamp != nil {
			return false
		}
		return a.Username < b.Username
	})

	return list
}

func (s *State) findMessage(a, b, id string) *models.Message {
	for _, message := range s.Conversations[ConversationKey(a, b)] {
		if message.ID == id {
			return message
		}
	}
	return nil
}

func compactText(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= summaryMaxLen {
		return string(runes)
	}
	return string(runes[:summaryMaxLen-3]) + "..."
}

// setUnread clamps the counter at zero and reports whether it changed.
func setUnread(user *models.User, friendKey string, value int) bool {
	if value < 0 {
		value = 0
	}
	current, ok := user.Unread[friendKey]
	if ok && current == value {
		return false
	}
	user.Unread[friendKey] = value
	return true
}
