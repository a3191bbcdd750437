// Package store provides persistence for the user directory, messages, and
// ad-hoc contacts.
//
// # Architecture
//
// The store exposes one narrow interface per collection:
//
//   - DirectoryStore: registered users (ListUsers, UpsertUser)
//   - MessageStore: every message (ListMessages, ReplaceMessages)
//   - ContactStore: per-user contacts added outside the directory (ListContacts, AppendContact)
//
// Store combines them with Ping and Close. Collections are read and written
// whole; there is no partial update API. Callers that need to change one
// message read the full set, modify it, and write it back.
//
// # Backends
//
// Both backends keep each collection as a single JSON document under the key
// the web client used in local storage (registeredUsers, ubwiyunge_messages,
// ubwiyunge_contacts):
//
//   - SQLStore: a collections table on modernc sqlite (default), mattn
//     sqlite3, or Postgres through the pgx stdlib driver
//   - MemoryStore: maps guarded by a RWMutex, used by tests and the memory driver
//
// Open picks a backend from Options.Driver.
//
// # Data Models
//
//   - User: closed variant of Citizen and Leader sharing a Profile
//   - Contact: a messaging projection of a user, or an ad-hoc entry
//   - Message: one text message; only Read changes after creation
//
// Users are persisted as flat records with role as the discriminator.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrCorrupt: a stored document cannot be decoded, or a user record has
//     an unknown role
//
// Writes over a corrupt document replace it and log a warning.
//
// # Testing
//
// MemoryStore and SQLStore share the collection logic, so tests against
// either exercise the same code. SetRaw injects arbitrary documents.
package store
