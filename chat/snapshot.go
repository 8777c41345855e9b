package chat

import (
	"sort"
	"strings"
	"time"

	"novyn/models"
)

// Snapshot serializes the full state into the persisted shape. Users,
// conversations and unread pairs are emitted in sorted key order so
// repeated snapshots of the same state are byte-identical; message order
// within a conversation is preserved as-is.
func (s *State) Snapshot() *models.Snapshot {
	snap := &models.Snapshot{
		Users:         make([]models.UserRecord, 0, len(s.Users)),
		Conversations: make([]models.ConversationRecord, 0, len(s.Conversations)),
	}

	userKeys := make([]string, 0, len(s.Users))
	for key := range s.Users {
		userKeys = append(userKeys, key)
	}
	sort.Strings(userKeys)

	for _, key := range userKeys {
		user := s.Users[key]
		record := models.UserRecord{
			Key:          key,
			Username:     user.Username,
			Friends:      sortedKeys(user.Friends),
			Requests:     sortedKeys(user.Requests),
			Unread:       make([]models.UnreadPair, 0, len(user.Unread)),
			IsRegistered: user.IsRegistered,
			PasswordSalt: user.PasswordSalt,
			PasswordHash: user.PasswordHash,
			AvatarID:     user.AvatarID,
			Age:          user.Age,
			Gender:       user.Gender,
			DisplayName:  user.DisplayName,
			Bio:          user.Bio,
			LastSeen:     user.LastSeen,
		}

		unreadKeys := make([]string, 0, len(user.Unread))
		for friendKey := range user.Unread {
			unreadKeys = append(unreadKeys, friendKey)
		}
		sort.Strings(unreadKeys)
		for _, friendKey := range unreadKeys {
			record.Unread = append(record.Unread, models.UnreadPair{Key: friendKey, Count: user.Unread[friendKey]})
		}

		snap.Users = append(snap.Users, record)
	}

	convKeys := make([]string, 0, len(s.Conversations))
	for key := range s.Conversations {
		convKeys = append(convKeys, key)
	}
	sort.Strings(convKeys)

	for _, key := range convKeys {
		snap.Conversations = append(snap.Conversations, models.ConversationRecord{
			Key:      key,
			Messages: s.Conversations[key],
		})
	}

	return snap
}

// Restore replaces the in-memory state with a loaded snapshot, tolerating
// partially damaged records: entries without a usable key or text are
// skipped rather than failing the whole load.
func (s *State) Restore(snap *models.Snapshot) {
	s.Users = make(map[string]*models.User)
	s.Conversations = make(map[string][]*models.Message)
	if snap == nil {
		return
	}

	for _, record := range snap.Users {
		key := NormalizeKey(record.Key)
		if key == "" {
			key = NormalizeKey(record.Username)
		}
		if key == "" {
			continue
		}

		username := strings.TrimSpace(record.Username)
		if username == "" {
			username = key
		}

		user := models.NewUser(key, username)
		for _, friend := range record.Friends {
			if friendKey := NormalizeKey(friend); friendKey != "" {
				user.Friends[friendKey] = true
			}
		}
		for _, requester := range record.Requests {
			if requesterKey := NormalizeKey(requester); requesterKey != "" {
				user.Requests[requesterKey] = true
			}
		}
		for _, pair := range record.Unread {
			friendKey := NormalizeKey(pair.Key)
			if friendKey == "" {
				continue
			}
			count := pair.Count
			if count < 0 {
				count = 0
			}
			user.Unread[friendKey] = count
		}

		user.IsRegistered = record.IsRegistered
		user.PasswordSalt = strings.TrimSpace(record.PasswordSalt)
		user.PasswordHash = strings.TrimSpace(record.PasswordHash)
		user.AvatarID = strings.TrimSpace(record.AvatarID)
		user.Age = strings.TrimSpace(record.Age)
		user.Gender = strings.TrimSpace(record.Gender)
		user.DisplayName = strings.TrimSpace(record.DisplayName)
		user.Bio = strings.TrimSpace(record.Bio)
		user.LastSeen = record.LastSeen

		s.Users[key] = user
	}

	for _, record := range snap.Conversations {
		key := strings.TrimSpace(record.Key)
		if key == "" {
			continue
		}

		messages := make([]*models.Message, 0, len(record.Messages))
		for _, raw := range record.Messages {
			if message := hydrateMessage(raw); message != nil {
				messages = append(messages, message)
			}
		}
		s.Conversations[key] = messages
	}
}

// hydrateMessage repairs a loaded message: missing ids and timestamps are
// regenerated, keys normalized, and the seen-implies-delivered invariant
// restored. Messages without identities or text are dropped.
func hydrateMessage(raw *models.Message) *models.Message {
	if raw == nil {
		return nil
	}

	message := *raw
	message.From = strings.TrimSpace(message.From)
	message.To = strings.TrimSpace(message.To)
	message.FromKey = NormalizeKey(message.FromKey)
	if message.FromKey == "" {
		message.FromKey = NormalizeKey(message.From)
	}
	message.ToKey = NormalizeKey(message.ToKey)
	if message.ToKey == "" {
		message.ToKey = NormalizeKey(message.To)
	}
	if message.From == "" {
		message.From = message.FromKey
	}
	if message.To == "" {
		message.To = message.ToKey
	}

	message.Text = strings.TrimSpace(message.Text)
	if message.FromKey == "" || message.ToKey == "" || message.Text == "" {
		return nil
	}

	if message.ID == "" {
		message.ID = NewMessageID()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	if message.SeenAt != nil && message.DeliveredAt == nil {
		message.DeliveredAt = message.SeenAt
	}

	return &message
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
