// ABOUTME: Conversation identifier minting, matching, and get-or-create resolution
// ABOUTME: Identifiers embed both participant ids plus a uniqueness token

package conversation

import (
	"strings"

	"github.com/2389/ubwiyunge/internal/store"
)

const (
	conversationPrefix       = "conv_"
	legacyConversationPrefix = "conversation_"
)

// CanonicalConversationID mints an identifier for a new conversation between
// a and b. The token must be unique per call so two threads started at the
// same moment never collide.
func CanonicalConversationID(a, b, token string) string {
	return conversationPrefix + a + "_" + b + "_" + token
}

// LegacyConversationID is the sorted-pair form older clients produced.
func LegacyConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return legacyConversationPrefix + a + "_" + b
}

// ConversationIDMatches reports whether id was generated for the pair a, b,
// in either order. Both the canonical and the legacy forms are accepted.
func ConversationIDMatches(id, a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	if id == LegacyConversationID(a, b) {
		return true
	}
	return hasPairPrefix(id, a, b) || hasPairPrefix(id, b, a)
}

func hasPairPrefix(id, first, second string) bool {
	prefix := conversationPrefix + first + "_" + second + "_"
	if !strings.HasPrefix(id, prefix) {
		return false
	}
	token := id[len(prefix):]
	return token != "" && !strings.Contains(token, "_")
}

// GetOrCreateConversationID continues an existing conversation with otherID
// if one is present in existing, otherwise it mints a new identifier.
// existing is expected in display order, so the most recent thread wins when
// the pair already has more than one.
func GetOrCreateConversationID(existing []Conversation, otherID, currentUserID, token string) string {
	for _, c := range existing {
		if c.Contact != nil && c.Contact.ID == otherID {
			return c.ID
		}
	}
	for _, c := range existing {
		if c.OtherID == otherID {
			return c.ID
		}
	}
	return CanonicalConversationID(currentUserID, otherID, token)
}

// claimedByOtherPair reports whether messages already use id for a pair
// other than a, b. Ids containing "_" can parse as more than one pair; the
// pair that used an id first keeps it.
func claimedByOtherPair(messages []store.Message, id, a, b string) bool {
	want := pairKey(store.Message{SenderID: a, ReceiverID: b})
	for _, m := range messages {
		if m.ConversationID == id && pairKey(m) != want {
			return true
		}
	}
	return false
}

// pairKey is an order-independent key for two participants.
func pairKey(m store.Message) [2]string {
	a, b := m.SenderID, m.ReceiverID
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}
