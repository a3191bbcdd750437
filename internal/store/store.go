// ABOUTME: Store interfaces for the user directory, message, and ad-hoc contact collections
// ABOUTME: Each collection is read and written whole, mirroring the browser storage it replaces

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrCorrupt is returned when a persisted collection cannot be decoded.
var ErrCorrupt = errors.New("corrupt collection")

// Collection keys. These match the keys the web client used in local storage
// so exported data can be loaded directly.
const (
	KeyUsers    = "registeredUsers"
	KeyMessages = "ubwiyunge_messages"
	KeyContacts = "ubwiyunge_contacts"
)

// DirectoryStore holds registered users keyed by id.
type DirectoryStore interface {
	ListUsers(ctx context.Context) ([]User, error)
	UpsertUser(ctx context.Context, user User) error
}

// MessageStore holds every message. There is no partial update: callers
// read the full set and write the full set back.
type MessageStore interface {
	ListMessages(ctx context.Context) ([]Message, error)
	ReplaceMessages(ctx context.Context, messages []Message) error
}

// ContactStore holds contacts added outside the directory. Each user has
// their own list.
type ContactStore interface {
	ListContacts(ctx context.Context, owner string) ([]Contact, error)
	AppendContact(ctx context.Context, owner string, contact Contact) error
}

// Store combines all collections with lifecycle methods.
type Store interface {
	DirectoryStore
	MessageStore
	ContactStore
	Ping(ctx context.Context) error
	Close() error
}
