// ABOUTME: HTTP handlers for contacts, conversations, and messages
// ABOUTME: Adds display fields (previews, relative times, rendered HTML) to the conversation model

package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/2389/ubwiyunge/internal/auth"
	"github.com/2389/ubwiyunge/internal/conversation"
	"github.com/2389/ubwiyunge/internal/dedupe"
	"github.com/2389/ubwiyunge/internal/store"
)

// IdempotencyHeader lets clients retry a send without duplicating it.
const IdempotencyHeader = "Idempotency-Key"

// ContactResponse is a contact with its presence line.
type ContactResponse struct {
	store.Contact
	LastSeenText string `json:"last_seen"`
}

// ConversationResponse summarizes one conversation for the list view.
type ConversationResponse struct {
	ID           string         `json:"id"`
	OtherID      string         `json:"other_id"`
	Contact      *store.Contact `json:"contact"`
	LastMessage  store.Message  `json:"last_message"`
	Preview      string         `json:"preview"`
	TimeAgo      string         `json:"time_ago"`
	LastSeen     string         `json:"last_seen,omitempty"`
	Unread       int            `json:"unread"`
	MessageCount int            `json:"message_count"`
}

// MessageResponse is a message with its rendered body.
type MessageResponse struct {
	store.Message
	ContentHTML string `json:"content_html"`
	TimeAgo     string `json:"time_ago"`
}

func conversationResponse(c conversation.Conversation, now time.Time) ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		OtherID:      c.OtherID,
		Contact:      c.Contact,
		LastMessage:  c.LastMessage,
		Preview:      conversation.Truncate(c.LastMessage.Content, conversation.PreviewLength),
		TimeAgo:      conversation.TimeAgo(c.LastMessage.Timestamp, now),
		LastSeen:     conversation.LastSeen(c.Contact, now),
		Unread:       c.UnreadCount,
		MessageCount: len(c.Messages),
	}
}

func (g *Gateway) messageResponse(m store.Message, now time.Time) MessageResponse {
	html, err := conversation.RenderContent(m.Content)
	if err != nil {
		g.logger.Warn("failed to render message", "message_id", m.ID, "error", err)
	}
	return MessageResponse{
		Message:     m,
		ContentHTML: html,
		TimeAgo:     conversation.TimeAgo(m.Timestamp, now),
	}
}

// handleListContacts handles GET /api/contacts.
func (g *Gateway) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := g.conversation.Contacts(r.Context(), auth.MustFromContext(r.Context()))
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	now := time.Now()
	out := make([]ContactResponse, len(contacts))
	for i := range contacts {
		out[i] = ContactResponse{Contact: contacts[i], LastSeenText: conversation.LastSeen(&contacts[i], now)}
	}
	g.sendJSON(w, http.StatusOK, out)
}

// handleAddContact handles POST /api/contacts.
func (g *Gateway) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var c store.Contact
	if !g.decodeJSON(w, r, &c) {
		return
	}
	contact, added, err := g.conversation.AddAdHocContact(r.Context(), auth.MustFromContext(r.Context()), c)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	g.sendJSON(w, status, contact)
}

// handleListConversations handles GET /api/conversations.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := g.conversation.Conversations(r.Context(), auth.MustFromContext(r.Context()))
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	now := time.Now()
	out := make([]ConversationResponse, len(convs))
	for i, c := range convs {
		out[i] = conversationResponse(c, now)
	}
	g.sendJSON(w, http.StatusOK, out)
}

type startConversationRequest struct {
	ContactID string `json:"contact_id"`
}

// handleStartConversation handles POST /api/conversations. It returns the
// id to use for the first message; nothing is stored until then.
func (g *Gateway) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	user := auth.MustFromContext(r.Context())
	if !g.checkCanMessage(w, r, user, req.ContactID) {
		return
	}
	id, err := g.conversation.StartConversation(r.Context(), user, req.ContactID)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]string{"id": id, "contact_id": req.ContactID})
}

// handleConversationMessages handles GET /api/conversations/{id}/messages.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	c, ok, err := g.conversation.FindConversation(r.Context(), user, r.PathValue("id"))
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	now := time.Now()
	msgs := make([]MessageResponse, len(c.Messages))
	for i, m := range c.Messages {
		msgs[i] = g.messageResponse(m, now)
	}
	g.sendJSON(w, http.StatusOK, map[string]any{
		"conversation": conversationResponse(c, now),
		"messages":     msgs,
	})
}

// handleMarkRead handles POST /api/conversations/{id}/read.
func (g *Gateway) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	marked, err := g.conversation.MarkConversationRead(r.Context(), r.PathValue("id"), user.UserID())
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

// handleUnreadCount handles GET /api/messages/unread-count.
func (g *Gateway) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := g.conversation.UnreadCount(r.Context(), auth.MustFromContext(r.Context()).UserID())
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]int{"unread": n})
}

// checkCanMessage writes 403 and returns false when user may not message
// receiverID. An empty receiver is left to request validation.
func (g *Gateway) checkCanMessage(w http.ResponseWriter, r *http.Request, user store.User, receiverID string) bool {
	if receiverID == "" || receiverID == user.UserID() {
		return true
	}
	ok, err := g.conversation.CanMessage(r.Context(), user, receiverID)
	if err != nil {
		g.sendDomainError(w, r, err)
		return false
	}
	if !ok {
		g.sendDomainError(w, r, errForbiddenReceiver)
		return false
	}
	return true
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	ReceiverID     string `json:"receiver_id"`
	Content        string `json:"content"`
	Context        string `json:"context"`
}

// handleSendMessage handles POST /api/messages. A repeated Idempotency-Key
// from the same user returns the original message with 200 instead of 201.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	user := auth.MustFromContext(r.Context())

	if req.ReceiverID == "" && req.ConversationID != "" {
		receiver, ok, err := g.conversation.ReceiverForConversation(r.Context(), user.UserID(), req.ConversationID)
		if err != nil {
			g.sendDomainError(w, r, err)
			return
		}
		if !ok {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		req.ReceiverID = receiver
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" {
		key = user.UserID() + ":" + key
		if g.replaySend(w, r, user, key) {
			return
		}
	}

	msg, err := g.send(r, user, req)
	if err != nil {
		if key != "" {
			g.dedupe.Release(key)
		}
		g.sendDomainError(w, r, err)
		return
	}
	if key != "" {
		g.dedupe.Remember(key, msg.ID)
	}
	g.sendJSON(w, http.StatusCreated, g.messageResponse(msg, time.Now()))
}

// replaySend claims key and reports whether the response was already
// written: a replay of a completed send, or a conflict with one in flight.
func (g *Gateway) replaySend(w http.ResponseWriter, r *http.Request, user store.User, key string) bool {
	msgID, state := g.dedupe.Claim(key)
	switch state {
	case dedupe.InFlight:
		g.sendJSONError(w, http.StatusConflict, "a request with this idempotency key is in progress")
		return true
	case dedupe.Completed:
		msg, ok, err := g.conversation.Message(r.Context(), user.UserID(), msgID)
		if err != nil {
			g.sendDomainError(w, r, err)
			return true
		}
		if ok {
			g.logger.Debug("replayed idempotent send", "message_id", msgID)
			g.sendJSON(w, http.StatusOK, g.messageResponse(msg, time.Now()))
			return true
		}
		// The stored message is gone; send again under a fresh claim.
		g.dedupe.Release(key)
		_, state = g.dedupe.Claim(key)
		if state == dedupe.InFlight {
			g.sendJSONError(w, http.StatusConflict, "a request with this idempotency key is in progress")
			return true
		}
	}
	return false
}

func (g *Gateway) send(r *http.Request, user store.User, req sendMessageRequest) (store.Message, error) {
	if req.ReceiverID != "" && req.ReceiverID != user.UserID() {
		ok, err := g.conversation.CanMessage(r.Context(), user, req.ReceiverID)
		if err != nil {
			return store.Message{}, err
		}
		if !ok {
			return store.Message{}, errForbiddenReceiver
		}
	}
	return g.conversation.SendMessage(r.Context(), conversation.SendRequest{
		ConversationID: req.ConversationID,
		SenderID:       user.UserID(),
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		Context:        req.Context,
	})
}

type quickMessageRequest struct {
	ContactID string `json:"contact_id"`
	Content   string `json:"content"`
	Context   string `json:"context"`
}

// handleQuickMessage handles POST /api/messages/quick, used from report and
// leader pages to message a contact without opening the conversation.
func (g *Gateway) handleQuickMessage(w http.ResponseWriter, r *http.Request) {
	var req quickMessageRequest
	if !g.decodeJSON(w, r, &req) {
		return
	}
	msg, err := g.conversation.SendQuickMessage(r.Context(), auth.MustFromContext(r.Context()), req.ContactID, req.Content, req.Context)
	if err != nil {
		g.sendDomainError(w, r, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, g.messageResponse(msg, time.Now()))
}
