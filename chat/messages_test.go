package chat

import (
	"errors"
	"strings"
	"testing"

	"novyn/models"
)

func profileFixture() models.Profile {
	return models.Profile{
		AvatarID:    "cat-3",
		Age:         "30",
		Gender:      "female",
		DisplayName: "Alice A.",
		Bio:         "likes cats",
	}
}

func TestAppendMessageRequiresFriendship(t *testing.T) {
	s := newTestState()
	s.GetOrCreateUser("alice")
	s.GetOrCreateUser("mallory")

	_, err := s.AppendMessage("alice", "mallory", "hey", "", false, false)
	var chatErr *Error
	if !errors.As(err, &chatErr) || chatErr.Kind != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if len(s.Conversations) != 0 {
		t.Error("rejected message must not be appended")
	}
}

func TestAppendMessageEmptyText(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	_, err := s.AppendMessage("alice", "bob", "   ", "", false, false)
	var chatErr *Error
	if !errors.As(err, &chatErr) || chatErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(s.Messages("alice", "bob")) != 0 {
		t.Error("rejected message must not be appended")
	}
}

func TestAppendMessageOfflineRecipient(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	msg, err := s.AppendMessage("alice", "bob", "hi", "", false, false)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if msg.DeliveredAt != nil || msg.SeenAt != nil {
		t.Error("offline recipient must leave delivery stamps empty")
	}
	if msg.ID == "" {
		t.Error("message needs an id")
	}
	if got := s.User("bob").Unread["alice"]; got != 1 {
		t.Errorf("unread should increment to 1, got %d", got)
	}
}

func TestAppendMessageOnlineRecipient(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	msg, err := s.AppendMessage("alice", "bob", "hi", "", true, false)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if msg.DeliveredAt == nil {
		t.Error("online recipient should stamp DeliveredAt")
	}
	if msg.SeenAt != nil {
		t.Error("recipient not viewing, SeenAt must be empty")
	}
	if got := s.User("bob").Unread["alice"]; got != 1 {
		t.Errorf("unread should still increment, got %d", got)
	}
}

func TestAppendMessageRecipientViewing(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	msg, err := s.AppendMessage("alice", "bob", "hi", "", true, true)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if msg.SeenAt == nil || msg.DeliveredAt == nil {
		t.Error("viewing recipient should stamp both SeenAt and DeliveredAt")
	}
	if got := s.User("bob").Unread["alice"]; got != 0 {
		t.Errorf("viewing recipient keeps unread at 0, got %d", got)
	}
}

func TestSeenImpliesDelivered(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	s.AppendMessage("alice", "bob", "one", "", false, false)
	s.AppendMessage("alice", "bob", "two", "", true, false)
	s.AppendMessage("alice", "bob", "three", "", true, true)
	s.MarkSeen("bob", "alice")
	s.MarkDelivered("bob")

	for _, messages := range s.Conversations {
		for _, msg := range messages {
			if msg.SeenAt != nil && msg.DeliveredAt == nil {
				t.Errorf("message %s is seen but not delivered", msg.ID)
			}
		}
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	s.AppendMessage("alice", "bob", "hi", "", false, false)
	s.AppendMessage("alice", "bob", "there", "", false, false)

	changed, unreadChanged := s.MarkSeen("bob", "alice")
	if len(changed) != 2 {
		t.Fatalf("expected 2 status changes, got %d", len(changed))
	}
	if !unreadChanged {
		t.Error("first MarkSeen should zero the counter")
	}

	changed, unreadChanged = s.MarkSeen("bob", "alice")
	if len(changed) != 0 {
		t.Errorf("second MarkSeen should change nothing, got %d", len(changed))
	}
	if unreadChanged {
		t.Error("second MarkSeen should leave the counter at 0")
	}
	if got := s.User("bob").Unread["alice"]; got != 0 {
		t.Errorf("unread should stay 0, got %d", got)
	}
}

func TestMarkSeenIgnoresOwnMessages(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	s.AppendMessage("alice", "bob", "hi", "", false, false)

	changed, _ := s.MarkSeen("alice", "bob")
	if len(changed) != 0 {
		t.Error("the sender opening the chat must not mark their own message seen")
	}
}

func TestMarkDelivered(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")
	befriend(t, s, "carol", "bob")

	s.AppendMessage("alice", "bob", "hi", "", false, false)
	s.AppendMessage("carol", "bob", "yo", "", false, false)
	s.AppendMessage("bob", "alice", "hey", "", false, false)

	changed := s.MarkDelivered("bob")
	if len(changed) != 2 {
		t.Fatalf("expected 2 deliveries to bob, got %d", len(changed))
	}
	for _, msg := range changed {
		if msg.ToKey != "bob" || msg.DeliveredAt == nil {
			t.Errorf("message %s not stamped for bob", msg.ID)
		}
	}

	if len(s.MarkDelivered("bob")) != 0 {
		t.Error("MarkDelivered should be idempotent")
	}
}

func TestReplyReference(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	original, _ := s.AppendMessage("alice", "bob", "original text", "", false, false)

	reply, err := s.AppendMessage("bob", "alice", "replying", original.ID, false, false)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if reply.ReplyTo == nil {
		t.Fatal("reply reference missing")
	}
	if reply.ReplyTo.ID != original.ID || reply.ReplyTo.From != "alice" || reply.ReplyTo.Text != "original text" {
		t.Errorf("reply snapshot wrong: %+v", reply.ReplyTo)
	}

	// Unknown ids are dropped silently.
	reply2, _ := s.AppendMessage("bob", "alice", "again", "no-such-id", false, false)
	if reply2.ReplyTo != nil {
		t.Error("unknown reply id should be ignored")
	}
}

func TestDeleteMessage(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	msg, _ := s.AppendMessage("alice", "bob", "oops", "", false, false)
	s.ToggleReaction("bob", "alice", msg.ID, "👍")

	deleted, err := s.DeleteMessage("alice", "bob", msg.ID)
	if err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Error("DeletedAt should be set")
	}
	if deleted.Text != DeletedPlaceholder {
		t.Errorf("text should become the placeholder, got %q", deleted.Text)
	}
	if deleted.Reactions != nil {
		t.Error("reactions should be cleared")
	}

	if _, err := s.DeleteMessage("alice", "bob", msg.ID); err == nil {
		t.Error("second delete should conflict")
	}
}

func TestDeleteMessageOnlySender(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	msg, _ := s.AppendMessage("alice", "bob", "mine", "", false, false)

	_, err := s.DeleteMessage("bob", "alice", msg.ID)
	var chatErr *Error
	if !errors.As(err, &chatErr) || chatErr.Kind != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if msg.DeletedAt != nil {
		t.Error("recipient must not be able to delete")
	}
}

func TestToggleReaction(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	msg, _ := s.AppendMessage("alice", "bob", "hi", "", false, false)

	updated, err := s.ToggleReaction("bob", "alice", msg.ID, "🔥")
	if err != nil {
		t.Fatalf("ToggleReaction failed: %v", err)
	}
	reaction := updated.Reactions["🔥"]
	if reaction == nil || reaction.Count != 1 || !reaction.Users["bob"] {
		t.Fatalf("unexpected reaction state: %+v", reaction)
	}

	s.ToggleReaction("alice", "bob", msg.ID, "🔥")
	if got := msg.Reactions["🔥"].Count; got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}

	// Toggling off removes the personal flag and, at zero, the entry.
	s.ToggleReaction("bob", "alice", msg.ID, "🔥")
	if got := msg.Reactions["🔥"].Count; got != 1 {
		t.Errorf("expected count 1 after toggle off, got %d", got)
	}
	s.ToggleReaction("alice", "bob", msg.ID, "🔥")
	if _, ok := msg.Reactions["🔥"]; ok {
		t.Error("empty reaction entry should be removed")
	}
}

func TestHistoryRequiresFriendship(t *testing.T) {
	s := newTestState()
	s.GetOrCreateUser("alice")
	s.GetOrCreateUser("mallory")

	_, err := s.History("alice", "mallory")
	var chatErr *Error
	if !errors.As(err, &chatErr) || chatErr.Kind != KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestFriendListOrdering(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")
	befriend(t, s, "alice", "carol")
	befriend(t, s, "alice", "dave")

	// carol has the most recent conversation, bob an older one, dave none.
	s.AppendMessage("bob", "alice", "first", "", false, false)
	s.AppendMessage("carol", "alice", "second", "", false, false)

	nobodyOnline := func(string) bool { return false }
	list := s.FriendList("alice", nobodyOnline)
	if len(list) != 3 {
		t.Fatalf("expected 3 friends, got %d", len(list))
	}
	if list[0].Username != "carol" || list[1].Username != "bob" || list[2].Username != "dave" {
		t.Errorf("wrong order: %s, %s, %s", list[0].Username, list[1].Username, list[2].Username)
	}
	if list[0].LastMessage != "second" || list[0].LastFrom != "carol" {
		t.Errorf("wrong summary: %+v", list[0])
	}
	if list[1].UnreadCount != 1 {
		t.Errorf("expected 1 unread from bob, got %d", list[1].UnreadCount)
	}
	if list[2].LastTimestamp != nil {
		t.Error("friend without messages should have no timestamp")
	}
}

func TestFriendListSummaryTruncation(t *testing.T) {
	s := newTestState()
	befriend(t, s, "alice", "bob")

	long := strings.Repeat("x", 80)
	s.AppendMessage("bob", "alice", long, "", false, false)

	list := s.FriendList("alice", func(string) bool { return false })
	if len(list[0].LastMessage) > summaryMaxLen {
		t.Errorf("summary too long: %d chars", len(list[0].LastMessage))
	}
	if !strings.HasSuffix(list[0].LastMessage, "...") {
		t.Error("truncated summary should end with ellipsis")
	}
}

func TestUpdateProfile(t *testing.T) {
	s := newTestState()
	s.GetOrCreateUser("alice")

	user, err := s.UpdateProfile("alice", profileFixture())
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.AvatarID != "cat-3" || user.DisplayName != "Alice A." || user.Age != "30" {
		t.Errorf("profile not applied: %+v", user.ToProfile())
	}
}
