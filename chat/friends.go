package chat

import (
	"sort"
	"strings"

	"novyn/models"
)

// AddFriendResult reports what a friend request did.
type AddFriendResult struct {
	Friend   *models.User
	Accepted bool // target had a pending request the other way, auto-accepted
}

// AddFriend registers a friend request from userKey to friendName,
// auto-accepting when the target already asked first. The target user is
// created lazily when unknown.
func (s *State) AddFriend(userKey, friendName string) (*AddFriendResult, error) {
	friendName = strings.TrimSpace(friendName)
	if friendName == "" {
		return nil, validationError("Friend username is required.")
	}

	friendKey := NormalizeKey(friendName)
	if friendKey == userKey {
		return nil, validationError("You cannot add yourself.")
	}

	me := s.Users[userKey]
	if me == nil {
		return nil, validationError("Please reconnect and try again.")
	}

	friend := s.GetOrCreateUser(friendName)

	if me.Friends[friendKey] {
		return nil, conflictError("Already friends.")
	}

	if me.Requests[friendKey] {
		// They asked first, this add is an accept.
		delete(me.Requests, friendKey)
		s.link(me, friend)
		return &AddFriendResult{Friend: friend, Accepted: true}, nil
	}

	if friend.Requests[userKey] {
		return nil, conflictError("Friend request already sent.")
	}

	friend.Requests[userKey] = true
	return &AddFriendResult{Friend: friend}, nil
}

// AcceptFriend turns the pending request from friendName into a
// friendship. Valid only while the request is pending.
func (s *State) AcceptFriend(userKey, friendName string) (*models.User, error) {
	friendKey := NormalizeKey(friendName)

	me := s.Users[userKey]
	friend := s.Users[friendKey]
	if me == nil || friend == nil || !me.Requests[friendKey] {
		return nil, validationError("No pending request from this user.")
	}

	delete(me.Requests, friendKey)
	s.link(me, friend)
	return friend, nil
}

// RemoveFriend severs the friendship symmetrically and clears the pair's
// conversation log.
func (s *State) RemoveFriend(userKey, friendName string) (*models.User, error) {
	friendKey := NormalizeKey(friendName)

	me := s.Users[userKey]
	friend := s.Users[friendKey]
	if me == nil || friend == nil || !me.Friends[friendKey] {
		return nil, validationError("You are not friends with this user.")
	}

	delete(me.Friends, friendKey)
	delete(friend.Friends, userKey)
	delete(me.Unread, friendKey)
	delete(friend.Unread, userKey)
	delete(s.Conversations, ConversationKey(userKey, friendKey))
	return friend, nil
}

// link adds the symmetric friendship and seeds both unread counters.
func (s *State) link(a, b *models.User) {
	a.Friends[b.Key] = true
	b.Friends[a.Key] = true
	if _, ok := a.Unread[b.Key]; !ok {
		a.Unread[b.Key] = 0
	}
	if _, ok := b.Unread[a.Key]; !ok {
		b.Unread[a.Key] = 0
	}
}

// RequestUsernames lists the display names of pending requesters.
func (s *State) RequestUsernames(user *models.User) []string {
	requests := make([]string, 0, len(user.Requests))
	for requesterKey := range user.Requests {
		if requester := s.Users[requesterKey]; requester != nil {
			requests = append(requests, requester.Username)
		} else {
			requests = append(requests, requesterKey)
		}
	}
	sort.Strings(requests)
	return requests
}
