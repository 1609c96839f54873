package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"directory-chat/contract"
	"directory-chat/domain"
	"directory-chat/errors"
)

type fakeConn struct {
	id   string
	sent []domain.Envelope
}

func (f *fakeConn) ID() string  { return f.id }
func (f *fakeConn) Ready() bool { return true }
func (f *fakeConn) Send(envelope domain.Envelope) error {
	f.sent = append(f.sent, envelope)
	return nil
}

func (f *fakeConn) last() domain.Envelope {
	return f.sent[len(f.sent)-1]
}

type fakeRegistry struct {
	registered map[string][]contract.Conn
	removed    []contract.Conn
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{registered: make(map[string][]contract.Conn)}
}

func (f *fakeRegistry) Register(userID string, conn contract.Conn) {
	f.registered[userID] = append(f.registered[userID], conn)
}
func (f *fakeRegistry) Remove(conn contract.Conn) { f.removed = append(f.removed, conn) }
func (f *fakeRegistry) IsOnline(userID string) bool {
	return len(f.registered[userID]) > 0
}
func (f *fakeRegistry) SendTo(string, domain.Envelope) {}

type fakeValidator struct {
	sessions map[string]contract.Session
}

func (f *fakeValidator) Validate(token string) (contract.Session, error) {
	session, ok := f.sessions[token]
	if !ok {
		return contract.Session{}, errors.ErrInvalidToken
	}
	return session, nil
}

type fakeDirectory struct {
	employees map[string]domain.Employee
}

func (f *fakeDirectory) GetEmployee(userID string) (domain.Employee, error) {
	employee, ok := f.employees[userID]
	if !ok {
		return domain.Employee{}, errors.ErrEmployeeNotFound
	}
	return employee, nil
}

// fakeChat records calls and answers from canned data; only the methods
// the live channel uses carry behavior.
type fakeChat struct {
	created      []domain.Message
	createErr    error
	markedRead   []int64
	markReadErr  error
	joinedGroups []int64
}

func (f *fakeChat) CreateMessage(_ context.Context, groupID int64, senderID, content string) (domain.Message, error) {
	if f.createErr != nil {
		return domain.Message{}, f.createErr
	}
	message := domain.Message{ID: int64(len(f.created) + 1), GroupID: groupID, SenderID: senderID, Content: content}
	f.created = append(f.created, message)
	return message, nil
}

func (f *fakeChat) ListMessages(int64, string, int, int) ([]domain.Message, error) { return nil, nil }
func (f *fakeChat) CountMessages(int64, string) (int, error)                       { return 0, nil }

func (f *fakeChat) MarkRead(messageID int64, _ string) error {
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.markedRead = append(f.markedRead, messageID)
	return nil
}

func (f *fakeChat) MarkGroupRead(int64, string) error      { return nil }
func (f *fakeChat) UnreadCount(int64, string) (int, error) { return 0, nil }
func (f *fakeChat) GlobalUnread(string) (int, error)       { return 0, nil }

func (f *fakeChat) JoinGroups(_ string, groupIDs []int64) ([]int64, error) {
	f.joinedGroups = groupIDs
	return groupIDs, nil
}

type harness struct {
	handler  *Handler
	registry *fakeRegistry
	chat     *fakeChat
	conn     *fakeConn
	sess     *session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	registry := newFakeRegistry()
	chat := &fakeChat{}
	validator := &fakeValidator{sessions: map[string]contract.Session{
		"good-token": {UserID: "alice"},
	}}
	directory := &fakeDirectory{employees: map[string]domain.Employee{
		"alice": {ID: "alice", Name: "Alice"},
	}}
	handler := NewHandler(slog.Default(), registry, validator, directory, chat, 8, 20, 40)
	conn := &fakeConn{id: "conn-1"}
	return &harness{
		handler:  handler,
		registry: registry,
		chat:     chat,
		conn:     conn,
		sess:     &session{conn: conn},
	}
}

func envelope(t *testing.T, envelopeType string, payload any) domain.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.Envelope{Type: envelopeType, Data: data}
}

func (h *harness) authenticate(t *testing.T) {
	t.Helper()
	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeAuth, authPayload{SessionToken: "good-token"}))
	require.True(t, h.sess.authenticated)
	h.conn.sent = nil
}

func TestHandler_Rejects_Frames_Before_Auth(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeSendMessage, sendMessagePayload{GroupID: 1, Content: "hi"}))

	req.False(h.sess.authenticated)
	req.Empty(h.chat.created)
	req.Len(h.conn.sent, 1)
	req.Equal(domain.EnvelopeError, h.conn.last().Type)
	req.Equal("authentication required", h.conn.last().Message)
}

func TestHandler_Auth_Success_Registers_Connection(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeAuth, authPayload{SessionToken: "good-token"}))

	req.True(h.sess.authenticated)
	req.Equal("alice", h.sess.userID)
	req.Len(h.registry.registered["alice"], 1)

	req.Len(h.conn.sent, 1)
	sent := h.conn.last()
	req.Equal(domain.EnvelopeAuthSuccess, sent.Type)
	var payload authSuccessPayload
	req.NoError(json.Unmarshal(sent.Data, &payload))
	req.Equal("alice", payload.UserID)
	req.Equal("Alice", payload.Name)
}

func TestHandler_Auth_Failure_Keeps_Connection_Open(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeAuth, authPayload{SessionToken: "bad-token"}))

	// Then the state machine stays Unauthenticated and nothing registered
	req.False(h.sess.authenticated)
	req.Empty(h.registry.registered)
	req.Equal(domain.EnvelopeAuthError, h.conn.last().Type)

	// And a retry on the same connection can still succeed
	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeAuth, authPayload{SessionToken: "good-token"}))
	req.True(h.sess.authenticated)
}

func TestHandler_Auth_Without_Token_Is_Auth_Error(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeAuth, authPayload{}))

	req.False(h.sess.authenticated)
	req.Equal(domain.EnvelopeAuthError, h.conn.last().Type)
}

func TestHandler_Duplicate_Auth_Is_Rejected(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeAuth, authPayload{SessionToken: "good-token"}))

	// Authenticated is terminal; the session keeps its original identity
	req.Equal(domain.EnvelopeError, h.conn.last().Type)
	req.Equal("alice", h.sess.userID)
	req.Len(h.registry.registered["alice"], 1)
}

func TestHandler_JoinGroups_Replies_With_Verified_Set(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeJoinGroups, joinGroupsPayload{GroupIDs: []int64{1, 2}}))

	req.Equal([]int64{1, 2}, h.chat.joinedGroups)
	sent := h.conn.last()
	req.Equal(domain.EnvelopeGroupsJoined, sent.Type)
	var payload groupsJoinedPayload
	req.NoError(json.Unmarshal(sent.Data, &payload))
	req.Equal([]int64{1, 2}, payload.GroupIDs)
}

func TestHandler_SendMessage_Creates_Without_Echo(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeSendMessage, sendMessagePayload{GroupID: 1, Content: "hello"}))

	req.Len(h.chat.created, 1)
	req.Equal("alice", h.chat.created[0].SenderID)
	// Delivery happens through the broadcast, not a direct reply
	req.Empty(h.conn.sent)
}

func TestHandler_SendMessage_Failure_Is_Error_Envelope(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)
	h.chat.createErr = errors.ErrNotAMember

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeSendMessage, sendMessagePayload{GroupID: 7, Content: "hello"}))

	req.Len(h.conn.sent, 1)
	req.Equal(domain.EnvelopeError, h.conn.last().Type)
}

func TestHandler_MarkRead_Acknowledges(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeMarkRead, markReadPayload{MessageID: 42}))

	req.Equal([]int64{42}, h.chat.markedRead)
	sent := h.conn.last()
	req.Equal(domain.EnvelopeMessageRead, sent.Type)
	var payload messageReadPayload
	req.NoError(json.Unmarshal(sent.Data, &payload))
	req.Equal(int64(42), payload.MessageID)
}

func TestHandler_MarkRead_Failure_Is_Error_Envelope(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)
	h.chat.markReadErr = errors.ErrMessageNotFound

	h.handler.handleEnvelope(context.Background(), h.sess, envelope(t, domain.EnvelopeMarkRead, markReadPayload{MessageID: 42}))

	req.Len(h.conn.sent, 1)
	req.Equal(domain.EnvelopeError, h.conn.last().Type)
}

func TestHandler_Unknown_Envelope_Type(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.authenticate(t)

	h.handler.handleEnvelope(context.Background(), h.sess, domain.Envelope{Type: "subscribe"})

	req.Len(h.conn.sent, 1)
	req.Equal(domain.EnvelopeError, h.conn.last().Type)
	req.Equal(fmt.Sprintf("unknown envelope type %q", "subscribe"), h.conn.last().Message)
}
