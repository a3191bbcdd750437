// ABOUTME: Domain records persisted by the store: users, contacts, and messages
// ABOUTME: User is a closed variant of Citizen and Leader sharing a common Profile

package store

import (
	"strings"
	"time"
)

// Role identifies which User variant a record holds.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleLeader  Role = "leader"
)

// Presence is a contact's availability status.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceAway    Presence = "away"
	PresenceBusy    Presence = "busy"
)

// Valid reports whether p is one of the known presence values.
func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceOffline, PresenceAway, PresenceBusy:
		return true
	}
	return false
}

// DefaultAvatar is used for users and contacts that never set one.
const DefaultAvatar = "assets/images/default-avatar.svg"

// MessageTypeText is the only message type currently produced.
const MessageTypeText = "text"

// Profile holds the fields every user has regardless of role.
type Profile struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	District     string
	Sector       string
	Avatar       string
	PasswordHash string
	CreatedAt    time.Time
}

// UserID returns the stable identifier of the user.
func (p Profile) UserID() string { return p.ID }

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// User is either a Citizen or a Leader. The set of implementations is closed.
type User interface {
	UserID() string
	DisplayName() string
	Role() Role
	Base() Profile
	isUser()
}

// Citizen is a community member. Citizens may only message leaders.
type Citizen struct {
	Profile
}

func (Citizen) Role() Role      { return RoleCitizen }
func (c Citizen) Base() Profile { return c.Profile }
func (Citizen) isUser()         {}

// Leader is a community leader. Leaders are messageable by everyone and
// carry office information citizens do not have.
type Leader struct {
	Profile
	Position      string
	Department    string
	OfficeAddress string
}

func (Leader) Role() Role      { return RoleLeader }
func (l Leader) Base() Profile { return l.Profile }
func (Leader) isUser()         {}

// FindUser returns the user with the given id.
func FindUser(users []User, id string) (User, bool) {
	for _, u := range users {
		if u.UserID() == id {
			return u, true
		}
	}
	return nil, false
}

// Contact is a user projected for messaging display, or an ad-hoc entry
// added from outside the directory.
type Contact struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Label      string    `json:"label,omitempty"`
	Title      string    `json:"title,omitempty"`
	Avatar     string    `json:"avatar,omitempty"`
	Status     Presence  `json:"status,omitempty"`
	LastSeen   time.Time `json:"lastSeen,omitzero"`
	Department string    `json:"department,omitempty"`
	District   string    `json:"district,omitempty"`
	Sector     string    `json:"sector,omitempty"`
	Email      string    `json:"email,omitempty"`
}

// Message is a single text message between two users. Only Read changes
// after creation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	Context        string    `json:"context,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
	Type           string    `json:"type"`
}

// Involves reports whether userID is the sender or receiver.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// OtherParty returns the participant that is not userID.
func (m Message) OtherParty(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
