package models

import "time"

// User is the in-memory record for one identity. A user is created in
// unregistered form the first time someone references it as a friend
// target, promoted to registered once credentials are set, and never
// deleted.
type User struct {
	Key          string
	Username     string // original casing
	Friends      map[string]bool
	Requests     map[string]bool // pending incoming requests, requester key
	Unread       map[string]int  // friend key -> unseen message count
	IsRegistered bool
	PasswordSalt string
	PasswordHash string
	AvatarID     string
	Age          string
	Gender       string
	DisplayName  string
	Bio          string
	LastSeen     *time.Time
}

// NewUser creates an unregistered user record for the given display name.
func NewUser(key, username string) *User {
	return &User{
		Key:      key,
		Username: username,
		Friends:  make(map[string]bool),
		Requests: make(map[string]bool),
		Unread:   make(map[string]int),
	}
}

// Profile is the passthrough profile block shown to other clients.
type Profile struct {
	AvatarID    string `json:"avatarId"`
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

// ToProfile extracts the profile fields for API responses.
func (u *User) ToProfile() Profile {
	return Profile{
		AvatarID:    u.AvatarID,
		Age:         u.Age,
		Gender:      u.Gender,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
	}
}

// FriendEntry is one row of a friend list as sent to clients.
type FriendEntry struct {
	Username      string     `json:"username"`
	Online        bool       `json:"online"`
	UnreadCount   int        `json:"unreadCount"`
	LastMessage   string     `json:"lastMessage"`
	LastTimestamp *time.Time `json:"lastTimestamp"`
	LastFrom      string     `json:"lastFrom"`
	AvatarID      string     `json:"avatarId"`
	DisplayName   string     `json:"displayName"`
	LastSeen      *time.Time `json:"lastSeen,omitempty"`
}
