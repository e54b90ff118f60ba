package domain

import (
	"sort"
	"time"
)

// Conversation pairs exactly two users. The member set is unordered: at
// most one conversation exists per pair, whichever way round the pair is
// given. Conversations are immutable once created and never deleted.
type Conversation struct {
	ID        string
	Members   [2]string
	CreatedAt time.Time
}

func (c Conversation) HasMember(userID string) bool {
	return c.Members[0] == userID || c.Members[1] == userID
}

// Peer returns the other member of the conversation.
func (c Conversation) Peer(userID string) string {
	if c.Members[0] == userID {
		return c.Members[1]
	}
	return c.Members[0]
}

// CanonicalPair orders two user ids deterministically so that (a, b) and
// (b, a) address the same conversation.
func CanonicalPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}
