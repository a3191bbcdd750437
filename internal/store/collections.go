// ABOUTME: Collection operations shared by every backend that stores JSON documents by key
// ABOUTME: Implements the directory, message, and contact stores on top of a document backend

package store

import (
	"context"
	"errors"
	"log/slog"
)

// documents is the minimal contract a backend provides: read a document and
// atomically rewrite one from its current value.
type documents interface {
	readDoc(ctx context.Context, key string) ([]byte, error)
	updateDoc(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// collections implements DirectoryStore, MessageStore, and ContactStore over
// a documents backend.
type collections struct {
	docs   documents
	logger *slog.Logger
}

// ListUsers returns every registered user in storage order.
func (c *collections) ListUsers(ctx context.Context) ([]User, error) {
	raw, err := c.docs.readDoc(ctx, KeyUsers)
	if err != nil {
		return nil, err
	}
	return decodeUsers(raw)
}

// UpsertUser replaces the user with the same id or appends a new one.
func (c *collections) UpsertUser(ctx context.Context, user User) error {
	return c.docs.updateDoc(ctx, KeyUsers, func(current []byte) ([]byte, error) {
		recs, err := decodeCollection[userRecord](KeyUsers, current)
		if err != nil {
			c.overwriting(KeyUsers, err)
			recs = nil
		}
		rec := encodeUser(user)
		replaced := false
		for i := range recs {
			if recs[i].ID == rec.ID {
				recs[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			recs = append(recs, rec)
		}
		return encodeCollection(KeyUsers, recs)
	})
}

// ListMessages returns every stored message in creation order.
func (c *collections) ListMessages(ctx context.Context) ([]Message, error) {
	raw, err := c.docs.readDoc(ctx, KeyMessages)
	if err != nil {
		return nil, err
	}
	return decodeCollection[Message](KeyMessages, raw)
}

// ReplaceMessages writes the full message set.
func (c *collections) ReplaceMessages(ctx context.Context, messages []Message) error {
	data, err := encodeCollection(KeyMessages, messages)
	if err != nil {
		return err
	}
	if err := c.docs.updateDoc(ctx, KeyMessages, func([]byte) ([]byte, error) {
		return data, nil
	}); err != nil {
		return err
	}
	c.logger.Debug("replaced messages", "count", len(messages))
	return nil
}

// ownedContact is the stored form of an ad-hoc contact. Entries without an
// owner belong to nobody and are never listed.
type ownedContact struct {
	Owner string `json:"owner"`
	Contact
}

// ListContacts returns the ad-hoc contacts added by owner.
func (c *collections) ListContacts(ctx context.Context, owner string) ([]Contact, error) {
	raw, err := c.docs.readDoc(ctx, KeyContacts)
	if err != nil {
		return nil, err
	}
	stored, err := decodeCollection[ownedContact](KeyContacts, raw)
	if err != nil {
		return nil, err
	}
	var contacts []Contact
	for _, oc := range stored {
		if owner != "" && oc.Owner == owner {
			contacts = append(contacts, oc.Contact)
		}
	}
	return contacts, nil
}

// AppendContact adds a contact to owner's list. A contact whose id owner
// already stored is left unchanged.
func (c *collections) AppendContact(ctx context.Context, owner string, contact Contact) error {
	if owner == "" {
		return errors.New("contact owner is required")
	}
	return c.docs.updateDoc(ctx, KeyContacts, func(current []byte) ([]byte, error) {
		stored, err := decodeCollection[ownedContact](KeyContacts, current)
		if err != nil {
			c.overwriting(KeyContacts, err)
			stored = nil
		}
		for _, existing := range stored {
			if existing.Owner == owner && existing.ID == contact.ID {
				return current, nil
			}
		}
		return encodeCollection(KeyContacts, append(stored, ownedContact{Owner: owner, Contact: contact}))
	})
}

// overwriting logs that a corrupt collection is about to be replaced.
func (c *collections) overwriting(key string, err error) {
	if errors.Is(err, ErrCorrupt) {
		c.logger.Warn("overwriting corrupt collection", "key", key, "error", err)
	}
}
