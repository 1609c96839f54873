package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"directory-chat/domain"
	"directory-chat/errors"
	"directory-chat/repositories"
	"directory-chat/runtime/workers"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	broadcast []domain.Message
	senders   []domain.Employee
}

func (r *recordingBroadcaster) Broadcast(message domain.Message, sender domain.Employee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, message)
	r.senders = append(r.senders, sender)
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []workers.Job
}

func (r *recordingNotifier) Enqueue(job workers.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

type fixture struct {
	service     *ChatService
	groups      *repositories.GroupRepository
	messages    *repositories.MessageRepository
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
}

// newFixture wires the service over a throwaway badger store with
// group 1 = {alice, bob} already in place.
func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messages, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	groups := repositories.NewGroupRepository(db)
	require.NoError(t, groups.CreateGroup(domain.Group{ID: 1, Name: "engineering", CreatorID: "alice", CreatedAt: time.Now().UTC()}))
	require.NoError(t, groups.AddMember(1, "alice"))
	require.NoError(t, groups.AddMember(1, "bob"))

	directory := repositories.NewEmployeeRepository(db)
	require.NoError(t, directory.Put(domain.Employee{ID: "alice", Name: "Alice"}))
	require.NoError(t, directory.Put(domain.Employee{ID: "bob", Name: "Bob"}))

	broadcaster := &recordingBroadcaster{}
	notifier := &recordingNotifier{}
	service := NewChatService(slog.Default(), messages, groups, directory, broadcaster, notifier)
	return fixture{
		service:     service,
		groups:      groups,
		messages:    messages,
		broadcaster: broadcaster,
		notifier:    notifier,
	}
}

// Scenario A: alice sends "hello"; the message persists with an empty
// readBy set, bob's unread count rises, and both dispatchers fire.
func TestChatService_Create_Persists_And_Fans_Out(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	message, err := f.service.CreateMessage(context.Background(), 1, "alice", "hello")
	req.NoError(err)
	req.Positive(message.ID)
	req.Empty(message.ReadBy)
	req.NotNil(message.ReadBy)

	count, err := f.service.UnreadCount(1, "bob")
	req.NoError(err)
	req.Equal(1, count)

	req.Len(f.broadcaster.broadcast, 1)
	req.Equal("Alice", f.broadcaster.senders[0].Name)

	req.Len(f.notifier.jobs, 1)
	req.Equal("engineering", f.notifier.jobs[0].GroupName)
	req.Equal(message.ID, f.notifier.jobs[0].Message.ID)
}

// Scenario B: non-member clara cannot send; nothing persists, nothing
// fans out.
func TestChatService_NonMember_Create_Persists_Nothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.service.CreateMessage(context.Background(), 1, "clara", "let me in")
	req.ErrorIs(err, errors.ErrNotAMember)

	messages, err := f.messages.ListMessages(1, 0, 0)
	req.NoError(err)
	req.Empty(messages)
	req.Empty(f.broadcaster.broadcast)
	req.Empty(f.notifier.jobs)
}

func TestChatService_Empty_Content_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.service.CreateMessage(context.Background(), 1, "alice", "   \t\n")
	req.ErrorIs(err, errors.ErrEmptyContent)

	messages, err := f.messages.ListMessages(1, 0, 0)
	req.NoError(err)
	req.Empty(messages)
}

// Scenario C: bob marks alice's message read; his count drops to zero,
// alice's stays untouched (senders are never counted).
func TestChatService_MarkRead_Updates_Unread(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	message, err := f.service.CreateMessage(context.Background(), 1, "alice", "hello")
	req.NoError(err)

	req.NoError(f.service.MarkRead(message.ID, "bob"))
	// Idempotent on repeat
	req.NoError(f.service.MarkRead(message.ID, "bob"))

	stored, err := f.messages.GetMessage(message.ID)
	req.NoError(err)
	req.Equal([]string{"bob"}, stored.ReadBy)

	count, err := f.service.UnreadCount(1, "bob")
	req.NoError(err)
	req.Equal(0, count)

	count, err = f.service.UnreadCount(1, "alice")
	req.NoError(err)
	req.Equal(0, count)
}

func TestChatService_MarkRead_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	message, err := f.service.CreateMessage(context.Background(), 1, "alice", "hello")
	req.NoError(err)

	req.ErrorIs(f.service.MarkRead(message.ID, "clara"), errors.ErrNotAMember)
	req.ErrorIs(f.service.MarkRead(999, "bob"), errors.ErrMessageNotFound)
}

func TestChatService_GlobalUnread_Sums_Groups(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.NoError(f.groups.CreateGroup(domain.Group{ID: 2, Name: "random", CreatorID: "alice", CreatedAt: time.Now().UTC()}))
	req.NoError(f.groups.AddMember(2, "alice"))
	req.NoError(f.groups.AddMember(2, "bob"))

	_, err := f.service.CreateMessage(context.Background(), 1, "alice", "one")
	req.NoError(err)
	_, err = f.service.CreateMessage(context.Background(), 1, "alice", "two")
	req.NoError(err)
	_, err = f.service.CreateMessage(context.Background(), 2, "alice", "three")
	req.NoError(err)

	total, err := f.service.GlobalUnread("bob")
	req.NoError(err)
	req.Equal(3, total)

	req.NoError(f.service.MarkGroupRead(1, "bob"))

	total, err = f.service.GlobalUnread("bob")
	req.NoError(err)
	req.Equal(1, total)

	// The sender has nothing unread anywhere
	total, err = f.service.GlobalUnread("alice")
	req.NoError(err)
	req.Equal(0, total)
}

func TestChatService_ListMessages_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, err := f.service.CreateMessage(context.Background(), 1, "alice", "hello")
	req.NoError(err)

	_, err = f.service.ListMessages(1, "clara", 0, 0)
	req.ErrorIs(err, errors.ErrNotAMember)

	messages, err := f.service.ListMessages(1, "bob", 0, 0)
	req.NoError(err)
	req.Len(messages, 1)
}

func TestChatService_JoinGroups_Filters_NonMemberships(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.NoError(f.groups.CreateGroup(domain.Group{ID: 2, Name: "random", CreatorID: "alice", CreatedAt: time.Now().UTC()}))
	req.NoError(f.groups.AddMember(2, "bob"))

	joined, err := f.service.JoinGroups("bob", []int64{1, 2, 7})
	req.NoError(err)
	req.Equal([]int64{1, 2}, joined)

	joined, err = f.service.JoinGroups("clara", []int64{1, 2})
	req.NoError(err)
	req.Empty(joined)
}

func TestChatService_Creation_Order_Matches_Broadcast_Order(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateMessage(context.Background(), 1, "alice", "concurrent")
			req.NoError(err)
		}()
	}
	wg.Wait()

	// Broadcasts entered the fan-out in strictly increasing ID order
	req.Len(f.broadcaster.broadcast, 10)
	for i := 1; i < len(f.broadcaster.broadcast); i++ {
		req.Greater(f.broadcaster.broadcast[i].ID, f.broadcaster.broadcast[i-1].ID)
	}
}
