package chat

import "time"

// Prune drops every message strictly older than the retention window,
// removes conversations emptied by the sweep, and rebuilds all unread
// counters from the messages that remain. Reports whether anything
// changed.
func (s *State) Prune(now time.Time) bool {
	cutoff := now.Add(-s.retention)
	changed := false

	for key, messages := range s.Conversations {
		kept := messages[:0:0]
		for _, message := range messages {
			if !message.Timestamp.Before(cutoff) {
				kept = append(kept, message)
			}
		}

		if len(kept) == len(messages) {
			continue
		}
		changed = true

		if len(kept) == 0 {
			delete(s.Conversations, key)
		} else {
			s.Conversations[key] = kept
		}
	}

	if changed {
		s.recomputeUnread()
	}

	return changed
}

// recomputeUnread rebuilds every counter from the unseen messages still in
// the logs. Full recompute rather than incremental adjustment keeps the
// counters consistent after pruning.
func (s *State) recomputeUnread() {
	for _, user := range s.Users {
		user.Unread = make(map[string]int, len(user.Friends))
		for friendKey := range user.Friends {
			user.Unread[friendKey] = 0
		}
	}

	for _, messages := range s.Conversations {
		for _, message := range messages {
			if message.SeenAt != nil {
				continue
			}
			recipient := s.Users[message.ToKey]
			if recipient == nil || !recipient.Friends[message.FromKey] {
				continue
			}
			recipient.Unread[message.FromKey]++
		}
	}
}
