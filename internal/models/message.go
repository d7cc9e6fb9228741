package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is one persisted direct message. Messages are append-only; the
// only field ever updated after insert is Read.
type Message struct {
	// ID is assigned by the store on insert.
	ID string `gorm:"type:uuid;primaryKey" json:"_id"`
	// ConversationID is derived from the participant pair and is identical
	// for every message exchanged between the same two users.
	ConversationID string `gorm:"type:text;not null;index:idx_conversation_created,priority:1" json:"conversationId"`
	SenderID       string `gorm:"type:text;not null;index" json:"senderId"`
	ReceiverID     string `gorm:"type:text;not null;index:idx_receiver_unread,priority:1" json:"receiverId"`
	Content        string `gorm:"type:text;not null" json:"content"`
	// Meta is open-ended data attached by the client.
	Meta datatypes.JSONMap `json:"meta"`
	Read bool              `gorm:"column:is_read;not null;index:idx_receiver_unread,priority:2" json:"read"`
	// CreatedAt is the sole ordering key within a conversation.
	CreatedAt time.Time `gorm:"not null;index:idx_conversation_created,priority:2" json:"createdAt"`
}

// BeforeCreate assigns the ID and normalizes Meta so it is never serialized
// as null.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	m.Prepare(time.Now())
	return
}

// Prepare fills the store-assigned fields that are still empty.
func (m *Message) Prepare(now time.Time) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Meta == nil {
		m.Meta = datatypes.JSONMap{}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
}

// MessageEvent is a persisted message enriched for delivery.
type MessageEvent struct {
	Message
	SenderName string `json:"senderName"`
}

// ConversationHead is the store-side summary of one conversation: its newest
// message and how many messages in it are unread by the requesting user.
type ConversationHead struct {
	ConversationID string
	LastMessage    Message
	UnreadCount    int64
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationID   string      `json:"conversationId"`
	OtherParticipant UserProfile `json:"otherParticipant"`
	LastMessage      Message     `json:"lastMessage"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	UnreadCount      int64       `json:"unreadCount"`
}
