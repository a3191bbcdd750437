// ABOUTME: Conversation service: reads the stores fresh, derives views, and performs writes
// ABOUTME: Corrupt collections fail closed to empty; writes are serialized read-modify-write

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/ubwiyunge/internal/store"
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	store.DirectoryStore
	store.MessageStore
	store.ContactStore
}

// Service owns the conversation model. It caches nothing between calls:
// every derivation re-reads the stores so writes from other processes are
// visible.
type Service struct {
	store  ConversationStore
	logger *slog.Logger

	// mu serializes read-modify-write cycles on the message and contact
	// collections within this process.
	mu sync.Mutex

	now      func() time.Time
	newID    func() string
	newToken func() string
}

// New creates a new conversation Service
func New(store ConversationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		logger: logger.With("component", "conversation"),
		now:    time.Now,
		newID:  newMessageID,
	}
	s.newToken = s.conversationToken
	return s
}

// newMessageID returns a time-ordered UUID so ids sort by creation.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// conversationToken combines the creation time with random bits so two
// threads started in the same millisecond still get distinct ids.
func (s *Service) conversationToken() string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + random
}

// failClosed turns a corrupt collection into an empty one.
func failClosed[T any](s *Service, what string, items []T, err error) ([]T, error) {
	if errors.Is(err, store.ErrCorrupt) {
		s.logger.Warn("corrupt collection treated as empty", "collection", what, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", what, err)
	}
	return items, nil
}

func (s *Service) loadUsers(ctx context.Context) ([]store.User, error) {
	users, err := s.store.ListUsers(ctx)
	return failClosed(s, "users", users, err)
}

func (s *Service) loadMessages(ctx context.Context) ([]store.Message, error) {
	msgs, err := s.store.ListMessages(ctx)
	return failClosed(s, "messages", msgs, err)
}

func (s *Service) loadAdHoc(ctx context.Context, owner string) ([]store.Contact, error) {
	contacts, err := s.store.ListContacts(ctx, owner)
	return failClosed(s, "contacts", contacts, err)
}

// Contacts returns the contacts user may message.
func (s *Service) Contacts(ctx context.Context, user store.User) ([]store.Contact, error) {
	directory, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	adHoc, err := s.loadAdHoc(ctx, user.UserID())
	if err != nil {
		return nil, err
	}
	return DeriveContacts(user, directory, adHoc), nil
}

// FindContact looks up one of user's contacts by id.
func (s *Service) FindContact(ctx context.Context, user store.User, id string) (store.Contact, bool, error) {
	contacts, err := s.Contacts(ctx, user)
	if err != nil {
		return store.Contact{}, false, err
	}
	c, ok := FindContact(contacts, id)
	return c, ok, nil
}

// AddAdHocContact adds a contact selected outside the directory, such as a
// leader picked from another page, to user's own list. It returns the
// contact as user will see it and whether it was newly added. A contact
// already visible to user is returned unchanged. Ids that belong to the
// directory are never stored: they are either already visible or not
// permitted. Ad-hoc contacts are always leaders.
func (s *Service) AddAdHocContact(ctx context.Context, user store.User, contact store.Contact) (store.Contact, bool, error) {
	contact.ID = strings.TrimSpace(contact.ID)
	if contact.ID == "" {
		return store.Contact{}, false, invalid("contact_id", "is required")
	}
	if contact.ID == user.UserID() {
		return store.Contact{}, false, invalid("contact_id", "cannot add yourself")
	}
	if contact.Avatar == "" {
		contact.Avatar = store.DefaultAvatar
	}
	if !contact.Status.Valid() {
		contact.Status = store.PresenceOnline
	}
	contact.Role = store.RoleLeader
	if contact.Name == "" {
		contact.Name = contact.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	directory, err := s.loadUsers(ctx)
	if err != nil {
		return store.Contact{}, false, err
	}
	if other, ok := store.FindUser(directory, contact.ID); ok {
		if !canSee(user, other) {
			return store.Contact{}, false, ErrNotPermitted
		}
		return ContactFromUser(other), false, nil
	}

	adHoc, err := s.loadAdHoc(ctx, user.UserID())
	if err != nil {
		return store.Contact{}, false, err
	}
	if existing, ok := FindContact(adHoc, contact.ID); ok {
		return existing, false, nil
	}

	if err := s.store.AppendContact(ctx, user.UserID(), contact); err != nil {
		return store.Contact{}, false, fmt.Errorf("saving contact: %w", err)
	}
	s.logger.Debug("ad-hoc contact added", "contact_id", contact.ID, "by", user.UserID())
	return contact, true, nil
}

// Conversations returns every conversation involving user, newest first.
// Anomalies in the stored data are logged.
func (s *Service) Conversations(ctx context.Context, user store.User) ([]Conversation, error) {
	contacts, err := s.Contacts(ctx, user)
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range FindAnomalies(msgs, user.UserID()) {
		s.logger.Warn("conversation anomaly",
			"kind", a.Kind,
			"conversation_ids", a.ConversationIDs,
			"message_id", a.MessageID,
			"user_id", user.UserID())
	}
	return GroupIntoConversations(msgs, contacts, user.UserID()), nil
}

// FindConversation returns the conversation with the given id as user sees
// it. The boolean is false when user has no such conversation.
func (s *Service) FindConversation(ctx context.Context, user store.User, convID string) (Conversation, bool, error) {
	convs, err := s.Conversations(ctx, user)
	if err != nil {
		return Conversation{}, false, err
	}
	for _, c := range convs {
		if c.ID == convID {
			return c, true, nil
		}
	}
	return Conversation{}, false, nil
}

// ConversationMessages returns the messages of a conversation in
// chronological order. An unknown conversation has no messages.
func (s *Service) ConversationMessages(ctx context.Context, user store.User, convID string) ([]store.Message, error) {
	c, ok, err := s.FindConversation(ctx, user, convID)
	if err != nil || !ok {
		return nil, err
	}
	return c.Messages, nil
}

// StartConversation returns the id of the conversation between user and
// otherID, continuing the most recent existing thread when there is one.
// Nothing is written until the first message is sent.
func (s *Service) StartConversation(ctx context.Context, user store.User, otherID string) (string, error) {
	if otherID == "" {
		return "", invalid("contact_id", "is required")
	}
	if otherID == user.UserID() {
		return "", invalid("contact_id", "cannot start a conversation with yourself")
	}
	convs, err := s.Conversations(ctx, user)
	if err != nil {
		return "", err
	}
	return GetOrCreateConversationID(convs, otherID, user.UserID(), s.newToken()), nil
}

// ReceiverForConversation returns the participant other than userID in the
// first message of the conversation.
func (s *Service) ReceiverForConversation(ctx context.Context, userID, convID string) (string, bool, error) {
	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return "", false, err
	}
	for _, m := range msgs {
		if m.ConversationID == convID && m.Involves(userID) {
			return m.OtherParty(userID), true, nil
		}
	}
	return "", false, nil
}

// Message returns the message with the given id when userID sent or
// received it.
func (s *Service) Message(ctx context.Context, userID, id string) (store.Message, bool, error) {
	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return store.Message{}, false, err
	}
	for _, m := range msgs {
		if m.ID == id && m.Involves(userID) {
			return m, true, nil
		}
	}
	return store.Message{}, false, nil
}

// SendRequest describes a message to send.
type SendRequest struct {
	// ConversationID may be empty, in which case the conversation between
	// sender and receiver is continued or started.
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	// Context is an optional label such as the report a message refers to.
	Context string
}

func (r SendRequest) validate() error {
	if r.SenderID == "" {
		return invalid("sender_id", "is required")
	}
	if r.ReceiverID == "" {
		return invalid("receiver_id", "is required")
	}
	if r.SenderID == r.ReceiverID {
		return invalid("receiver_id", "must differ from sender")
	}
	if strings.TrimSpace(r.Content) == "" {
		return invalid("content", "must not be empty")
	}
	if r.ConversationID != "" && !ConversationIDMatches(r.ConversationID, r.SenderID, r.ReceiverID) {
		return invalid("conversation_id", "was not generated for this sender and receiver")
	}
	return nil
}

// SendMessage appends a new unread message and writes the full message set
// back. Validation happens before anything is read or written.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (store.Message, error) {
	if err := req.validate(); err != nil {
		return store.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return store.Message{}, err
	}

	convID := req.ConversationID
	if convID != "" && claimedByOtherPair(msgs, convID, req.SenderID, req.ReceiverID) {
		return store.Message{}, invalid("conversation_id", "belongs to another pair of participants")
	}
	if convID == "" {
		existing := GroupIntoConversations(msgs, nil, req.SenderID)
		convID = GetOrCreateConversationID(existing, req.ReceiverID, req.SenderID, s.newToken())
	}

	msg := store.Message{
		ID:             s.newID(),
		ConversationID: convID,
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		Content:        strings.TrimSpace(req.Content),
		Context:        strings.TrimSpace(req.Context),
		Timestamp:      s.now().UTC(),
		Read:           false,
		Type:           store.MessageTypeText,
	}

	if err := s.store.ReplaceMessages(ctx, append(msgs, msg)); err != nil {
		return store.Message{}, fmt.Errorf("failed to record message: %w", err)
	}

	s.logger.Debug("message recorded",
		"conversation_id", convID,
		"message_id", msg.ID,
		"sender", msg.SenderID)
	return msg, nil
}

// SendQuickMessage sends text to one of sender's contacts, continuing the
// existing conversation if there is one.
func (s *Service) SendQuickMessage(ctx context.Context, sender store.User, contactID, text, msgContext string) (store.Message, error) {
	if _, ok, err := s.FindContact(ctx, sender, contactID); err != nil {
		return store.Message{}, err
	} else if !ok {
		return store.Message{}, fmt.Errorf("%w: %s", ErrUnknownContact, contactID)
	}

	convID, err := s.StartConversation(ctx, sender, contactID)
	if err != nil {
		return store.Message{}, err
	}
	return s.SendMessage(ctx, SendRequest{
		ConversationID: convID,
		SenderID:       sender.UserID(),
		ReceiverID:     contactID,
		Content:        text,
		Context:        msgContext,
	})
}

// MarkConversationRead marks every unread message addressed to userID in the
// conversation as read and returns how many changed. Calling it again
// returns 0.
func (s *Service) MarkConversationRead(ctx context.Context, convID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range msgs {
		m := &msgs[i]
		if m.ConversationID == convID && m.ReceiverID == userID && !m.Read {
			m.Read = true
			marked++
		}
	}
	if marked == 0 {
		return 0, nil
	}

	if err := s.store.ReplaceMessages(ctx, msgs); err != nil {
		return 0, fmt.Errorf("failed to mark read: %w", err)
	}
	s.logger.Debug("conversation marked read", "conversation_id", convID, "user_id", userID, "count", marked)
	return marked, nil
}

// UnreadCount returns the number of unread messages addressed to userID
// across all conversations.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return 0, err
	}
	return UnreadFor(msgs, userID), nil
}

// CanMessage reports whether sender may message receiverID: the receiver is
// one of sender's contacts or already shares a conversation with sender.
func (s *Service) CanMessage(ctx context.Context, sender store.User, receiverID string) (bool, error) {
	if _, ok, err := s.FindContact(ctx, sender, receiverID); err != nil || ok {
		return ok, err
	}
	msgs, err := s.loadMessages(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range msgs {
		if m.Involves(sender.UserID()) && m.OtherParty(sender.UserID()) == receiverID {
			return true, nil
		}
	}
	return false, nil
}
