// ABOUTME: Pure derivation of conversations from a flat message list
// ABOUTME: Groups by conversation id, resolves contacts, counts unread, orders by recency

package conversation

import (
	"slices"
	"sort"

	"github.com/2389/ubwiyunge/internal/store"
)

// Conversation is a derived view over the messages sharing one identifier.
// It is never persisted.
type Conversation struct {
	ID          string
	OtherID     string
	Contact     *store.Contact // nil when the other participant is not a known contact
	Messages    []store.Message
	LastMessage store.Message
	UnreadCount int
}

type group struct {
	id       string
	messages []indexed
	last     indexed
}

// indexed pairs a message with its position in the stored collection.
// Storage order is creation order, so the index breaks timestamp ties.
type indexed struct {
	pos int
	msg store.Message
}

func (a indexed) after(b indexed) bool {
	if a.msg.Timestamp.Equal(b.msg.Timestamp) {
		return a.pos > b.pos
	}
	return a.msg.Timestamp.After(b.msg.Timestamp)
}

// GroupIntoConversations groups the messages involving currentUserID by
// conversation id. The other participant of each conversation comes from its
// most recent message. A conversation whose other participant is not in
// contacts is kept with a nil Contact. Distinct identifiers are never merged,
// even when they share a participant pair. The result is ordered by most
// recent message, newest first.
func GroupIntoConversations(messages []store.Message, contacts []store.Contact, currentUserID string) []Conversation {
	byID := make(map[string]*group)
	var order []*group

	for i, m := range messages {
		if !m.Involves(currentUserID) {
			continue
		}
		im := indexed{pos: i, msg: m}
		g, ok := byID[m.ConversationID]
		if !ok {
			g = &group{id: m.ConversationID, last: im}
			byID[m.ConversationID] = g
			order = append(order, g)
		}
		g.messages = append(g.messages, im)
		if im.after(g.last) {
			g.last = im
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].last.after(order[j].last)
	})

	conversations := make([]Conversation, 0, len(order))
	for _, g := range order {
		conversations = append(conversations, g.conversation(contacts, currentUserID))
	}
	return conversations
}

func (g *group) conversation(contacts []store.Contact, currentUserID string) Conversation {
	sort.SliceStable(g.messages, func(i, j int) bool {
		return g.messages[j].after(g.messages[i])
	})

	c := Conversation{
		ID:          g.id,
		OtherID:     g.last.msg.OtherParty(currentUserID),
		Messages:    make([]store.Message, 0, len(g.messages)),
		LastMessage: g.last.msg,
	}
	for _, im := range g.messages {
		c.Messages = append(c.Messages, im.msg)
		if im.msg.ReceiverID == currentUserID && !im.msg.Read {
			c.UnreadCount++
		}
	}
	if contact, ok := FindContact(contacts, c.OtherID); ok {
		c.Contact = &contact
	}
	return c
}

// UnreadFor counts messages addressed to userID that have not been read.
func UnreadFor(messages []store.Message, userID string) int {
	n := 0
	for _, m := range messages {
		if m.ReceiverID == userID && !m.Read {
			n++
		}
	}
	return n
}

// AnomalyKind classifies a problem found in stored messages.
type AnomalyKind string

const (
	// AnomalyMismatchedID marks a message whose conversation id was not
	// generated for its sender and receiver.
	AnomalyMismatchedID AnomalyKind = "mismatched_id"
	// AnomalyForkedPair marks a participant pair with more than one
	// conversation id.
	AnomalyForkedPair AnomalyKind = "forked_pair"
	// AnomalySelfMessage marks a message whose sender is its receiver.
	AnomalySelfMessage AnomalyKind = "self_message"
)

// Anomaly describes stored data that breaks a conversation invariant.
// Anomalies are reported, never repaired.
type Anomaly struct {
	Kind            AnomalyKind
	ConversationIDs []string
	MessageID       string
}

// FindAnomalies inspects the messages involving currentUserID. Results are
// in storage order.
func FindAnomalies(messages []store.Message, currentUserID string) []Anomaly {
	var anomalies []Anomaly
	idsByPair := make(map[[2]string][]string)
	var pairs [][2]string

	for _, m := range messages {
		if !m.Involves(currentUserID) {
			continue
		}
		if m.SenderID == m.ReceiverID {
			anomalies = append(anomalies, Anomaly{Kind: AnomalySelfMessage, ConversationIDs: []string{m.ConversationID}, MessageID: m.ID})
			continue
		}
		if !ConversationIDMatches(m.ConversationID, m.SenderID, m.ReceiverID) {
			anomalies = append(anomalies, Anomaly{Kind: AnomalyMismatchedID, ConversationIDs: []string{m.ConversationID}, MessageID: m.ID})
		}

		key := pairKey(m)
		ids, ok := idsByPair[key]
		if !ok {
			pairs = append(pairs, key)
		}
		if !slices.Contains(ids, m.ConversationID) {
			idsByPair[key] = append(ids, m.ConversationID)
		}
	}

	for _, key := range pairs {
		if ids := idsByPair[key]; len(ids) > 1 {
			anomalies = append(anomalies, Anomaly{Kind: AnomalyForkedPair, ConversationIDs: ids})
		}
	}
	return anomalies
}
