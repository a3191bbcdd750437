// ABOUTME: Tests for the conversation Service
// ABOUTME: Verifies send validation, read tracking, unread accounting, and fail-closed loading

package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ubwiyunge/internal/store"
)

var (
	citizenC1 = store.Citizen{Profile: store.Profile{ID: "C1", FirstName: "Aline", LastName: "Uwase"}}
	citizenC2 = store.Citizen{Profile: store.Profile{ID: "C2", FirstName: "Eric", LastName: "Habimana"}}
	leaderL1  = store.Leader{Profile: store.Profile{ID: "L1", FirstName: "Marie", LastName: "Rwakazina"}, Position: "Mayor"}
	leaderL2  = store.Leader{Profile: store.Profile{ID: "L2", FirstName: "Paul", LastName: "Rwabukwisi"}}
)

func createTestStore(t *testing.T) *store.SQLStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestService returns a service over a memory store seeded with the
// given users and a clock that advances one second per call.
func newTestService(t *testing.T, users ...store.User) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	for _, u := range users {
		require.NoError(t, st.UpsertUser(ctx, u))
	}
	svc := New(st, nil)
	svc.now = steppingClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("msg_%03d", seq)
	}
	return svc, st
}

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func send(t *testing.T, svc *Service, from, to store.User, text string) store.Message {
	t.Helper()
	msg, err := svc.SendMessage(context.Background(), SendRequest{
		SenderID:   from.UserID(),
		ReceiverID: to.UserID(),
		Content:    text,
	})
	require.NoError(t, err)
	return msg
}

func TestService_SendMessage_CreatesUnreadTextMessage(t *testing.T) {
	svc, st := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	msg := send(t, svc, citizenC1, leaderL1, "  Hello  ")

	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.Read)
	assert.Equal(t, store.MessageTypeText, msg.Type)
	assert.True(t, ConversationIDMatches(msg.ConversationID, "C1", "L1"), "id %s", msg.ConversationID)

	stored, err := st.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msg, stored[0])
}

func TestService_SendMessage_RejectsEmptyText(t *testing.T) {
	svc, st := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	for _, text := range []string{"", " ", "\t\n  "} {
		_, err := svc.SendMessage(ctx, SendRequest{SenderID: "C1", ReceiverID: "L1", Content: text})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), "text %q: expected ValidationError, got %v", text, err)
		assert.Equal(t, "content", ve.Field)
	}

	stored, err := st.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_SendMessage_RejectsSelfMessage(t *testing.T) {
	svc, st := newTestService(t, citizenC1)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, SendRequest{SenderID: "C1", ReceiverID: "C1", Content: "note to self"})
	assert.True(t, IsValidation(err))

	stored, err := st.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_SendMessage_RejectsForeignConversationID(t *testing.T) {
	svc, st := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	msg := send(t, svc, citizenC1, leaderL1, "Hello")

	// C2 cannot post into the C1/L1 thread.
	_, err := svc.SendMessage(ctx, SendRequest{
		ConversationID: msg.ConversationID,
		SenderID:       "C2",
		ReceiverID:     "L1",
		Content:        "me too",
	})
	assert.True(t, IsValidation(err))

	stored, err := st.ListMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestService_SendMessage_AmbiguousIDStaysWithFirstPair(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	const id = "conv_mayor_gasabo_C1_1700000000000-a1b2c3"

	_, err := svc.SendMessage(ctx, SendRequest{ConversationID: id, SenderID: "mayor_gasabo", ReceiverID: "C1", Content: "Muraho"})
	require.NoError(t, err)

	// The same id also parses as the pair "mayor" and "gasabo_C1".
	_, err = svc.SendMessage(ctx, SendRequest{ConversationID: id, SenderID: "mayor", ReceiverID: "gasabo_C1", Content: "hijack"})
	assert.True(t, IsValidation(err))

	_, err = svc.SendMessage(ctx, SendRequest{ConversationID: id, SenderID: "C1", ReceiverID: "mayor_gasabo", Content: "Murakoze"})
	require.NoError(t, err)

	stored, err := st.ListMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestService_SendMessage_ContinuesExistingThread(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)

	first := send(t, svc, citizenC1, leaderL1, "Hello")
	reply := send(t, svc, leaderL1, citizenC1, "Hi, how can I help?")

	assert.Equal(t, first.ConversationID, reply.ConversationID)
}

func TestService_SendMessage_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1, leaderL2)
	ctx := context.Background()

	send(t, svc, citizenC1, leaderL2, "unrelated")
	msg := send(t, svc, citizenC1, leaderL1, "Water outage in Kimironko")

	convs, err := svc.Conversations(ctx, leaderL1)
	require.NoError(t, err)

	found := 0
	for _, c := range convs {
		for _, m := range c.Messages {
			if m.ID == msg.ID {
				found++
				assert.Equal(t, msg.Content, m.Content)
				assert.Equal(t, msg.SenderID, m.SenderID)
				assert.Equal(t, msg.ReceiverID, m.ReceiverID)
			}
		}
	}
	assert.Equal(t, 1, found)
}

func TestService_HelloScenario_UnreadAccounting(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	unread := func(u store.User) int {
		n, err := svc.UnreadCount(ctx, u.UserID())
		require.NoError(t, err)
		return n
	}

	msg := send(t, svc, citizenC1, leaderL1, "Hello")
	assert.Equal(t, 1, unread(leaderL1))
	assert.Equal(t, 0, unread(citizenC1))

	marked, err := svc.MarkConversationRead(ctx, msg.ConversationID, "L1")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	assert.Equal(t, 0, unread(leaderL1))
	assert.Equal(t, 0, unread(citizenC1))
}

func TestService_MarkConversationRead_Idempotent(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	msg := send(t, svc, citizenC1, leaderL1, "one")
	send(t, svc, citizenC1, leaderL1, "two")
	send(t, svc, leaderL1, citizenC1, "reply")

	marked, err := svc.MarkConversationRead(ctx, msg.ConversationID, "L1")
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	marked, err = svc.MarkConversationRead(ctx, msg.ConversationID, "L1")
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	// The citizen's own unread reply is untouched.
	n, err := svc.UnreadCount(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_UnreadCount_MatchesConversationSum(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, citizenC2, leaderL1, leaderL2)
	ctx := context.Background()

	send(t, svc, citizenC1, leaderL1, "a")
	send(t, svc, citizenC2, leaderL1, "b")
	send(t, svc, leaderL2, leaderL1, "c")
	send(t, svc, leaderL1, citizenC1, "d")
	m := send(t, svc, citizenC2, leaderL1, "e")
	_, err := svc.MarkConversationRead(ctx, m.ConversationID, "L1")
	require.NoError(t, err)
	send(t, svc, citizenC2, leaderL1, "f")

	for _, u := range []store.User{citizenC1, citizenC2, leaderL1, leaderL2} {
		total, err := svc.UnreadCount(ctx, u.UserID())
		require.NoError(t, err)

		convs, err := svc.Conversations(ctx, u)
		require.NoError(t, err)
		sum := 0
		for _, c := range convs {
			sum += c.UnreadCount
		}
		assert.Equal(t, total, sum, "user %s", u.UserID())
	}
}

func TestService_CorruptMessagesFailClosed(t *testing.T) {
	svc, st := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	require.NoError(t, st.SetRaw(ctx, store.KeyMessages, []byte("[{broken")))

	convs, err := svc.Conversations(ctx, citizenC1)
	require.NoError(t, err)
	assert.Empty(t, convs)

	n, err := svc.UnreadCount(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// The next send replaces the corrupt collection.
	send(t, svc, citizenC1, leaderL1, "Hello again")
	convs, err = svc.Conversations(ctx, citizenC1)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestService_CorruptDirectoryFailsClosed(t *testing.T) {
	svc, st := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	require.NoError(t, st.SetRaw(ctx, store.KeyUsers, []byte(`[{"id":"L1","role":"wizard"}]`)))

	contacts, err := svc.Contacts(ctx, citizenC1)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestService_StartConversation_ContinuesExistingThread(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1, leaderL2)
	ctx := context.Background()

	msg := send(t, svc, leaderL1, citizenC1, "Following up on your report")

	id, err := svc.StartConversation(ctx, citizenC1, "L1")
	require.NoError(t, err)
	assert.Equal(t, msg.ConversationID, id)

	fresh, err := svc.StartConversation(ctx, citizenC1, "L2")
	require.NoError(t, err)
	assert.NotEqual(t, msg.ConversationID, fresh)
	assert.True(t, ConversationIDMatches(fresh, "C1", "L2"))

	_, err = svc.StartConversation(ctx, citizenC1, "C1")
	assert.True(t, IsValidation(err))
}

func TestService_StartConversation_UnknownContactStillContinued(t *testing.T) {
	svc, st := newTestService(t, citizenC1)
	ctx := context.Background()

	// L9 is not in the directory, so C1 has no contact for it.
	require.NoError(t, st.ReplaceMessages(ctx, []store.Message{{
		ID: "m1", ConversationID: "conv_L9_C1_1", SenderID: "L9", ReceiverID: "C1",
		Content: "hello", Timestamp: time.Now(), Type: store.MessageTypeText,
	}}))

	convs, err := svc.Conversations(ctx, citizenC1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Nil(t, convs[0].Contact)

	id, err := svc.StartConversation(ctx, citizenC1, "L9")
	require.NoError(t, err)
	assert.Equal(t, "conv_L9_C1_1", id)
}

func TestService_FindConversation_NotFound(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	_, ok, err := svc.FindConversation(ctx, citizenC1, "conv_C1_L1_missing")
	require.NoError(t, err)
	assert.False(t, ok)

	msgs, err := svc.ConversationMessages(ctx, citizenC1, "conv_C1_L1_missing")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestService_ConversationMessages_Chronological(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	first := send(t, svc, citizenC1, leaderL1, "first")
	send(t, svc, leaderL1, citizenC1, "second")
	send(t, svc, citizenC1, leaderL1, "third")

	msgs, err := svc.ConversationMessages(ctx, leaderL1, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestService_ReceiverForConversation(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	msg := send(t, svc, citizenC1, leaderL1, "Hello")

	receiver, ok, err := svc.ReceiverForConversation(ctx, "C1", msg.ConversationID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "L1", receiver)

	receiver, ok, err = svc.ReceiverForConversation(ctx, "L1", msg.ConversationID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C1", receiver)

	_, ok, err = svc.ReceiverForConversation(ctx, "C1", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Message_OnlyForParticipants(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	msg := send(t, svc, citizenC1, leaderL1, "Hello")

	got, ok, err := svc.Message(ctx, "L1", msg.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello", got.Content)

	_, ok, err = svc.Message(ctx, "C2", msg.ID)
	require.NoError(t, err)
	assert.False(t, ok, "outsiders cannot read the message")

	_, ok, err = svc.Message(ctx, "C1", "msg_missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_AddAdHocContact(t *testing.T) {
	svc, st := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	added, isNew, err := svc.AddAdHocContact(ctx, citizenC1, store.Contact{ID: "mayor_kicukiro", Name: "Paul Rwabukwisi", Title: "Mayor"})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, store.DefaultAvatar, added.Avatar)
	assert.Equal(t, store.PresenceOnline, added.Status)
	assert.Equal(t, store.RoleLeader, added.Role)

	// Already visible through the directory: nothing is stored.
	existing, isNew, err := svc.AddAdHocContact(ctx, citizenC1, store.Contact{ID: "L1", Name: "Someone Else"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "Marie Rwakazina", existing.Name)

	_, isNew, err = svc.AddAdHocContact(ctx, citizenC1, store.Contact{ID: "mayor_kicukiro"})
	require.NoError(t, err)
	assert.False(t, isNew)

	stored, err := st.ListContacts(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	_, _, err = svc.AddAdHocContact(ctx, citizenC1, store.Contact{})
	assert.True(t, IsValidation(err))

	_, _, err = svc.AddAdHocContact(ctx, citizenC1, store.Contact{ID: "C1"})
	assert.True(t, IsValidation(err))
}

func TestService_AddAdHocContact_IgnoresClientRole(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	added, _, err := svc.AddAdHocContact(ctx, citizenC1, store.Contact{ID: "neighbour", Role: store.RoleCitizen})
	require.NoError(t, err)
	assert.Equal(t, store.RoleLeader, added.Role)
	assert.Equal(t, "neighbour", added.Name)
}

func TestService_AddAdHocContact_CitizenCannotAddCitizen(t *testing.T) {
	svc, st := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	_, _, err := svc.AddAdHocContact(ctx, citizenC1, store.Contact{ID: "C2", Name: "Jean", Role: store.RoleLeader})
	require.ErrorIs(t, err, ErrNotPermitted)

	stored, err := st.ListContacts(ctx, "C1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	ok, err := svc.CanMessage(ctx, citizenC1, "C2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SendQuickMessage(ctx, citizenC1, "C2", "hi", "")
	assert.ErrorIs(t, err, ErrUnknownContact)

	contacts, err := svc.Contacts(ctx, citizenC2)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, contactIDs(contacts))
}

func TestService_AddAdHocContact_LeaderGetsDirectoryProjection(t *testing.T) {
	svc, st := newTestService(t, citizenC1, leaderL1)
	ctx := context.Background()

	got, isNew, err := svc.AddAdHocContact(ctx, leaderL1, store.Contact{ID: "C1", Name: "Renamed", Role: store.RoleLeader})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, store.RoleCitizen, got.Role)
	assert.Equal(t, citizenC1.DisplayName(), got.Name)

	stored, err := st.ListContacts(ctx, "L1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_AddAdHocContact_ScopedToOwner(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	_, isNew, err := svc.AddAdHocContact(ctx, citizenC2, store.Contact{ID: "mayor_kicukiro", Name: "Paul Rwabukwisi"})
	require.NoError(t, err)
	require.True(t, isNew)

	mine, err := svc.Contacts(ctx, citizenC2)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "mayor_kicukiro"}, contactIDs(mine))

	theirs, err := svc.Contacts(ctx, citizenC1)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, contactIDs(theirs))

	ok, err := svc.CanMessage(ctx, citizenC1, "mayor_kicukiro")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SendQuickMessage(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	msg, err := svc.SendQuickMessage(ctx, citizenC1, "L1", "About my report", "RPT-001")
	require.NoError(t, err)
	assert.Equal(t, "RPT-001", msg.Context)
	assert.Equal(t, "L1", msg.ReceiverID)

	// Citizens cannot reach other citizens.
	_, err = svc.SendQuickMessage(ctx, citizenC1, "C2", "hi", "")
	assert.ErrorIs(t, err, ErrUnknownContact)
}

func TestService_CanMessage(t *testing.T) {
	svc, _ := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	ok, err := svc.CanMessage(ctx, citizenC1, "L1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanMessage(ctx, citizenC1, "C2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_ConcurrentSendsAreNotLost(t *testing.T) {
	svc, st := newTestService(t, citizenC1, citizenC2, leaderL1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := "C1"
			if i%2 == 0 {
				from = "C2"
			}
			_, err := svc.SendMessage(ctx, SendRequest{SenderID: from, ReceiverID: "L1", Content: fmt.Sprintf("msg %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := st.ListMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 20)
}

func TestService_SQLStoreBackend(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, citizenC1))
	require.NoError(t, st.UpsertUser(ctx, leaderL1))
	svc := New(st, nil)

	msg, err := svc.SendMessage(ctx, SendRequest{SenderID: "C1", ReceiverID: "L1", Content: "Hello"})
	require.NoError(t, err)

	convs, err := svc.Conversations(ctx, leaderL1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, msg.ConversationID, convs[0].ID)
	require.NotNil(t, convs[0].Contact)
	assert.Equal(t, "Aline Uwase", convs[0].Contact.Name)
	assert.Equal(t, 1, convs[0].UnreadCount)
}
