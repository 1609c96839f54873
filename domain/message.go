// Package domain contains core concepts of the group-messaging system.
// This file defines Message entities and related rules.
// Messages are append-only: after creation only the ReadBy set mutates.
package domain

import "time"

// MessageTypeText is the only message type the delivery core produces itself.
// The tag travels with the message so clients can render other types later.
const MessageTypeText = "text"

// Message is one entry of a group's durable log.
// IDs are server-assigned and monotonic; the ordering key is (CreatedAt, ID).
type Message struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"groupId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	ReadBy    []string  `json:"readBy"`
}

// ReadBy contains userID iff userID already acknowledged the message.
func (m Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadFor reports whether the message counts as unread for userID.
// Self-sent messages are never unread for their sender.
func (m Message) UnreadFor(userID string) bool {
	return m.SenderID != userID && !m.IsReadBy(userID)
}

// OutboundMessage is the broadcast payload: the message enriched with
// the resolved sender identity.
type OutboundMessage struct {
	Message
	Sender Employee `json:"sender"`
}
