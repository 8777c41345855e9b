package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnreadPair serializes as a two-element [key, count] array, matching the
// persisted state layout.
type UnreadPair struct {
	Key   string
	Count int
}

func (p UnreadPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Key, p.Count})
}

func (p *UnreadPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("unread entry needs [key, count], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return err
	}
	var count float64
	if err := json.Unmarshal(raw[1], &count); err != nil {
		return err
	}
	if count < 0 {
		count = 0
	}
	p.Count = int(count)
	return nil
}

// UserRecord is the persisted form of a User.
type UserRecord struct {
	Key          string       `json:"key"`
	Username     string       `json:"username"`
	Friends      []string     `json:"friends"`
	Requests     []string     `json:"requests"`
	Unread       []UnreadPair `json:"unread"`
	IsRegistered bool         `json:"isRegistered"`
	PasswordSalt string       `json:"passwordSalt"`
	PasswordHash string       `json:"passwordHash"`
	AvatarID     string       `json:"avatarId"`
	Age          string       `json:"age"`
	Gender       string       `json:"gender"`
	DisplayName  string       `json:"displayName"`
	Bio          string       `json:"bio,omitempty"`
	LastSeen     *time.Time   `json:"lastSeen,omitempty"`
}

// ConversationRecord is one persisted two-party message log.
type ConversationRecord struct {
	Key      string     `json:"key"`
	Messages []*Message `json:"messages"`
}

// Snapshot is the full durable state. Both store backends round-trip
// exactly this shape.
type Snapshot struct {
	Users         []UserRecord         `json:"users"`
	Conversations []ConversationRecord `json:"conversations"`
}
