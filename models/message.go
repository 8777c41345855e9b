package models

import "time"

// ReplyRef is a snapshot of the message being replied to, taken at send
// time so the reference survives retention pruning of the original.
type ReplyRef struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Text string `json:"text"`
}

// Reaction tracks one emoji's tally on a message.
type Reaction struct {
	Count int             `json:"count"`
	Users map[string]bool `json:"users"` // user key -> has reacted
}

// Message is a single chat message between two friends.
// SeenAt is never set without DeliveredAt.
type Message struct {
	ID          string               `json:"id"`
	From        string               `json:"from"` // display names at send time
	To          string               `json:"to"`
	FromKey     string               `json:"fromKey"`
	ToKey       string               `json:"toKey"`
	Text        string               `json:"text"`
	Timestamp   time.Time            `json:"timestamp"`
	DeliveredAt *time.Time           `json:"deliveredAt"`
	SeenAt      *time.Time           `json:"seenAt"`
	ReplyTo     *ReplyRef            `json:"replyTo,omitempty"`
	Reactions   map[string]*Reaction `json:"reactions,omitempty"`
	DeletedAt   *time.Time           `json:"deletedAt,omitempty"`
}

// WSMessage is the JSON envelope for every frame on the socket.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
