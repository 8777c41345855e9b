package chat

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"novyn/models"
)

// State is the authoritative in-memory aggregate: every user record and
// conversation log lives here. State is not goroutine-safe; the caller
// runs one event at a time under its own lock.
type State struct {
	Users         map[string]*models.User
	Conversations map[string][]*models.Message

	retention      time.Duration
	minPasswordLen int
}

// NewState creates an empty aggregate with the given retention window.
func NewState(retentionDays, minPasswordLen int) *State {
	if retentionDays < 1 {
		retentionDays = 1
	}
	return &State{
		Users:          make(map[string]*models.User),
		Conversations:  make(map[string][]*models.Message),
		retention:      time.Duration(retentionDays) * 24 * time.Hour,
		minPasswordLen: minPasswordLen,
	}
}

// NormalizeKey returns the canonical identity key for a username.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ConversationKey identifies the message log for a pair of users
// regardless of argument order.
func ConversationKey(a, b string) string {
	ka, kb := NormalizeKey(a), NormalizeKey(b)
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "::" + kb
}

const messageIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewMessageID returns a unique, time-derived message id. Ids sort roughly
// by send time but carry no ordering guarantee.
func NewMessageID() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = messageIDAlphabet[rand.Intn(len(messageIDAlphabet))]
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

// User looks up a user by key. Returns nil when unknown.
func (s *State) User(key string) *models.User {
	return s.Users[NormalizeKey(key)]
}

// GetOrCreateUser returns the record for username, creating an
// unregistered stub on first reference.
func (s *State) GetOrCreateUser(username string) *models.User {
	key := NormalizeKey(username)
	user, ok := s.Users[key]
	if !ok {
		user = models.NewUser(key, strings.TrimSpace(username))
		s.Users[key] = user
	}
	return user
}

// AreFriends reports whether the friendship exists. The relation is kept
// symmetric, so one side is enough to check.
func (s *State) AreFriends(a, b string) bool {
	user := s.Users[NormalizeKey(a)]
	return user != nil && user.Friends[NormalizeKey(b)]
}

// Messages returns the ordered log for the pair, which may be nil.
func (s *State) Messages(a, b string) []*models.Message {
	return s.Conversations[ConversationKey(a, b)]
}
