// Package conversation implements the messaging model: contacts derived from
// the user directory, conversations derived from messages, and the
// send/read lifecycle of a message.
//
// # Overview
//
// Conversations are never stored. They are recomputed from the flat message
// collection on every call by pure functions:
//
//   - DeriveContacts(user, directory, adHoc): who user may message
//   - GroupIntoConversations(messages, contacts, userID): conversations, newest first
//   - GetOrCreateConversationID(existing, otherID, userID, token): continue or mint
//   - FindAnomalies(messages, userID): stored data that breaks an invariant
//
// # Service
//
// Service wraps the pure functions with store access:
//
//	svc := conversation.New(store, logger)
//	convID, _ := svc.StartConversation(ctx, citizen, "mayor_gasabo")
//	msg, _ := svc.SendMessage(ctx, conversation.SendRequest{
//		ConversationID: convID,
//		SenderID:       citizen.UserID(),
//		ReceiverID:     "mayor_gasabo",
//		Content:        "The road on KG 11 is flooded",
//	})
//
// The current user is always passed explicitly. Every call re-reads the
// stores; writes read the full message set, modify it, and write it back
// while holding the service mutex.
//
// # Conversation Identifiers
//
// New identifiers have the form conv_<sender>_<receiver>_<token>. The legacy
// form conversation_<a>_<b> (sorted pair) is still recognised. Starting a
// conversation always continues an existing thread with the same participant
// before minting a new id, and SendMessage rejects an id that was not
// generated for its sender and receiver.
//
// # Error Handling
//
//   - *ValidationError: rejected request, nothing written
//   - store.ErrCorrupt: never returned; the collection is treated as empty
//     and a warning is logged
//   - lookups return a boolean instead of a not-found error
package conversation
