package chat

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"novyn/models"
)

const (
	passwordIterations = 120000
	passwordKeyLength  = 64
	passwordSaltBytes  = 16
)

func newPasswordSecret(password string) (salt, hash string) {
	raw := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(raw); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	salt = hex.EncodeToString(raw)
	key := pbkdf2.Key([]byte(password), []byte(salt), passwordIterations, passwordKeyLength, sha512.New)
	return salt, hex.EncodeToString(key)
}

func verifyPassword(password, salt, hash string) bool {
	if password == "" || salt == "" || hash == "" {
		return false
	}

	expected := pbkdf2.Key([]byte(password), []byte(salt), passwordIterations, passwordKeyLength, sha512.New)
	actual, err := hex.DecodeString(hash)
	if err != nil || len(actual) != len(expected) {
		return false
	}

	return subtle.ConstantTimeCompare(expected, actual) == 1
}

// Register authenticates or creates the account for username and returns
// its user record. A known registered name with an empty password is an
// auth challenge, not a hard failure; a stub created as a friend target
// registers on its first password.
func (s *State) Register(username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" {
		return nil, validationError("Username is required.")
	}

	key := NormalizeKey(username)
	existing := s.Users[key]

	if existing != nil && existing.IsRegistered {
		if password == "" {
			err := authError(
				"This username already exists. Enter the password to sign in.",
				s.UsernameSuggestions(username),
			)
			err.Challenge = true
			return nil, err
		}

		if existing.PasswordSalt == "" || existing.PasswordHash == "" {
			// Legacy account that predates credentials: first password wins.
			existing.PasswordSalt, existing.PasswordHash = newPasswordSecret(password)
		} else if !verifyPassword(password, existing.PasswordSalt, existing.PasswordHash) {
			return nil, authError(
				"Incorrect password for this username.",
				s.UsernameSuggestions(username),
			)
		}

		existing.Username = username
		return existing, nil
	}

	if len(password) < s.minPasswordLen {
		return nil, authError(fmt.Sprintf("Use at least %d characters in password.", s.minPasswordLen), nil)
	}

	user := s.GetOrCreateUser(username)
	user.PasswordSalt, user.PasswordHash = newPasswordSecret(password)
	user.IsRegistered = true
	user.Username = username
	return user, nil
}

// IsUsernameTaken reports whether a registered account owns the name.
// Unregistered stubs do not reserve it.
func (s *State) IsUsernameTaken(username string) bool {
	user := s.Users[NormalizeKey(username)]
	return user != nil && user.IsRegistered
}

var suggestionStrip = regexp.MustCompile(`[^a-z0-9_]`)

const (
	suggestionCount   = 5
	suggestionMaxLen  = 24
	suggestionMaxTrys = 10000
)

// UsernameSuggestions derives up to five unused usernames from the
// requested name by appending numeric suffixes.
func (s *State) UsernameSuggestions(requested string) []string {
	base := suggestionStrip.ReplaceAllString(NormalizeKey(requested), "")
	if base == "" {
		base = "user"
	}

	suggestions := make([]string, 0, suggestionCount)
	for suffix := 1; len(suggestions) < suggestionCount && suffix < suggestionMaxTrys; suffix++ {
		suffixText := strconv.Itoa(suffix)
		available := suggestionMaxLen - len(suffixText)
		if available < 1 {
			available = 1
		}

		candidate := base
		if len(candidate) > available {
			candidate = candidate[:available]
		}
		candidate += suffixText

		if !s.IsUsernameTaken(candidate) {
			suggestions = append(suggestions, candidate)
		}
	}

	return suggestions
}
