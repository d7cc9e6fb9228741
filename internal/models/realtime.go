package models

import "encoding/json"

// Realtime event names exchanged over the socket.
const (
	EventAuthenticate     = "authenticate"
	EventUnauthorized     = "unauthorized"
	EventJoinConversation = "joinConversation"
	EventSendMessage      = "sendMessage"
	EventNewMessage       = "newMessage"
	EventError            = "error"
	EventNewDonor         = "new_donor"
	EventUpdateDonor      = "update_donor"
	EventRemoveDonor      = "remove_donor"
)

// RoomAll addresses every connection on every instance.
const RoomAll = "*"

// Frame is a single event on the socket, in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is a broadcast travelling through the broker: one event for a set
// of rooms.
type Envelope struct {
	Event string          `json:"event"`
	Rooms []string        `json:"rooms"`
	Data  json.RawMessage `json:"data"`
}

// Frame returns the frame delivered to each room member.
func (e Envelope) Frame() Frame {
	return Frame{Event: e.Event, Data: e.Data}
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type SendMessagePayload struct {
	ReceiverID string         `json:"receiverId"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NoticePayload carries the human-readable text of unauthorized and error
// events.
type NoticePayload struct {
	Message string `json:"message"`
}

type RemoveDonorPayload struct {
	ID string `json:"id"`
}
