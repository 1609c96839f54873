package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"directory-chat/contract"
	"directory-chat/domain"
	"directory-chat/services"
)

// Inbound payloads.
type authPayload struct {
	SessionToken string `json:"sessionToken"`
}

type joinGroupsPayload struct {
	GroupIDs []int64 `json:"groupIds"`
}

type sendMessagePayload struct {
	GroupID int64  `json:"groupId"`
	Content string `json:"content"`
}

type markReadPayload struct {
	MessageID int64 `json:"messageId"`
}

// Outbound payloads.
type authSuccessPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type groupsJoinedPayload struct {
	GroupIDs []int64 `json:"groupIds"`
}

type messageReadPayload struct {
	MessageID int64 `json:"messageId"`
}

// session is the per-connection state machine: Unauthenticated until
// the auth envelope succeeds, Authenticated (terminal) afterwards.
type session struct {
	conn          contract.Conn
	authenticated bool
	userID        string
}

// Handler upgrades HTTP requests to live connections and dispatches
// their envelopes.
type Handler struct {
	log        *slog.Logger
	registry   contract.IRegistry
	sessions   contract.SessionValidator
	directory  contract.EmployeeDirectory
	chat       services.IChatService
	upgrader   websocket.Upgrader
	bufferSize int
	frameRate  rate.Limit
	frameBurst int
}

func NewHandler(log *slog.Logger, registry contract.IRegistry,
	sessions contract.SessionValidator, directory contract.EmployeeDirectory,
	chat services.IChatService, bufferSize int, frameRate float64, frameBurst int) *Handler {
	return &Handler{
		log:       log,
		registry:  registry,
		sessions:  sessions,
		directory: directory,
		chat:      chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
		frameRate:  rate.Limit(frameRate),
		frameBurst: frameBurst,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn := newConn(h.log, wsConn, h.bufferSize)
	go conn.writePump()
	h.readPump(r.Context(), conn)
}

// readPump handles one connection's inbound frames strictly in program
// order. On any read error the connection is removed from the registry
// unconditionally, authenticated or not.
func (h *Handler) readPump(ctx context.Context, conn *Conn) {
	sess := &session{conn: conn}
	defer func() {
		h.registry.Remove(conn)
		conn.close()
	}()

	conn.configureRead()
	limiter := rate.NewLimiter(h.frameRate, h.frameBurst)

	for {
		data, err := conn.readFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Unexpected close", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if !limiter.Allow() {
			_ = conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "rate limit exceeded"))
			continue
		}
		var envelope domain.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			_ = conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "malformed envelope"))
			continue
		}
		h.handleEnvelope(ctx, sess, envelope)
	}
}

// handleEnvelope is the tagged-union dispatch over envelope types.
// While Unauthenticated, every non-auth envelope is rejected and
// otherwise ignored.
func (h *Handler) handleEnvelope(ctx context.Context, sess *session, envelope domain.Envelope) {
	if envelope.Type == domain.EnvelopeAuth {
		h.handleAuth(sess, envelope)
		return
	}
	if !sess.authenticated {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "authentication required"))
		return
	}

	switch envelope.Type {
	case domain.EnvelopeJoinGroups:
		h.handleJoinGroups(sess, envelope)
	case domain.EnvelopeSendMessage:
		h.handleSendMessage(ctx, sess, envelope)
	case domain.EnvelopeMarkRead:
		h.handleMarkRead(sess, envelope)
	default:
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError,
			fmt.Sprintf("unknown envelope type %q", envelope.Type)))
	}
}

// handleAuth performs the only state transition a connection has. A
// failed validation leaves the connection open and Unauthenticated; a
// second auth on an authenticated connection is rejected because the
// Authenticated state is terminal.
func (h *Handler) handleAuth(sess *session, envelope domain.Envelope) {
	if sess.authenticated {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "already authenticated"))
		return
	}

	var payload authPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.SessionToken == "" {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeAuthError, "missing session token"))
		return
	}

	session, err := h.sessions.Validate(payload.SessionToken)
	if err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeAuthError, "invalid or expired session token"))
		return
	}

	sess.authenticated = true
	sess.userID = session.UserID
	h.registry.Register(session.UserID, sess.conn)

	name := session.UserID
	if employee, err := h.directory.GetEmployee(session.UserID); err == nil {
		name = employee.Name
	}
	h.sendPayload(sess, domain.EnvelopeAuthSuccess, authSuccessPayload{
		UserID: session.UserID,
		Name:   name,
	})
	h.log.Info("Connection authenticated", "conn_id", sess.conn.ID(), "user_id", session.UserID)
}

func (h *Handler) handleJoinGroups(sess *session, envelope domain.Envelope) {
	var payload joinGroupsPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "malformed join_groups payload"))
		return
	}
	joined, err := h.chat.JoinGroups(sess.userID, payload.GroupIDs)
	if err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "failed to verify group membership"))
		return
	}
	h.sendPayload(sess, domain.EnvelopeGroupsJoined, groupsJoinedPayload{GroupIDs: joined})
}

// handleSendMessage is the live-channel alternative to the REST create
// endpoint. The sender gets no direct echo: like every member, it
// receives the message through the broadcast, keeping one source of
// truth for IDs and timestamps.
func (h *Handler) handleSendMessage(ctx context.Context, sess *session, envelope domain.Envelope) {
	var payload sendMessagePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "malformed send_message payload"))
		return
	}
	if _, err := h.chat.CreateMessage(ctx, payload.GroupID, sess.userID, payload.Content); err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, err.Error()))
	}
}

func (h *Handler) handleMarkRead(sess *session, envelope domain.Envelope) {
	var payload markReadPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, "malformed mark_read payload"))
		return
	}
	if err := h.chat.MarkRead(payload.MessageID, sess.userID); err != nil {
		_ = sess.conn.Send(domain.ErrorEnvelope(domain.EnvelopeError, err.Error()))
		return
	}
	h.sendPayload(sess, domain.EnvelopeMessageRead, messageReadPayload{MessageID: payload.MessageID})
}

func (h *Handler) sendPayload(sess *session, envelopeType string, payload any) {
	envelope, err := domain.NewEnvelope(envelopeType, payload)
	if err != nil {
		h.log.Error("Failed to encode envelope", "type", envelopeType, "error", err)
		return
	}
	_ = sess.conn.Send(envelope)
}
