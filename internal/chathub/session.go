package chathub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/auth"
	"bloodlink/backend/internal/chat"
	"bloodlink/backend/internal/models"
)

// notAuthenticated is the error text sent for a sendMessage before authenticate.
const notAuthenticated = "Not authenticated"

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TokenVerifier checks the bearer credential presented in authenticate.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// MessageSender is the send use-case shared with the REST surface.
type MessageSender interface {
	SendMessage(ctx context.Context, senderID, receiverID, content string, meta map[string]any) (*models.MessageEvent, error)
}

// Rooms is the part of the hub a session drives.
type Rooms interface {
	Join(c Client, room string)
	Emit(c Client, event string, payload any)
	Terminate(c Client, event string, payload any)
}

// SessionOptions configures NewSession.
type SessionOptions struct {
	// RestrictJoin rejects joinConversation for conversations the user is
	// not part of.
	RestrictJoin bool
	Log          *zap.Logger
}

// Session is the protocol state of one connection. It is driven by the
// connection's read loop only, so it needs no locking.
type Session struct {
	client   Client
	rooms    Rooms
	tokens   TokenVerifier
	messages MessageSender
	opts     SessionOptions
	log      *zap.Logger

	state  SessionState
	userID string
}

func NewSession(client Client, rooms Rooms, tokens TokenVerifier, messages MessageSender, opts SessionOptions) *Session {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		client:   client,
		rooms:    rooms,
		tokens:   tokens,
		messages: messages,
		opts:     opts,
		log:      log.With(zap.String("connection", client.ID())),
		state:    StateUnauthenticated,
	}
}

func (s *Session) State() SessionState { return s.state }

// UserID is empty until the session authenticates.
func (s *Session) UserID() string { return s.userID }

// Handle processes one inbound frame. It returns false once the session is
// terminated and the read loop should stop.
func (s *Session) Handle(ctx context.Context, frame models.Frame) bool {
	if s.state == StateTerminated {
		return false
	}

	switch frame.Event {
	case models.EventAuthenticate:
		s.authenticate(frame.Data)
	case models.EventJoinConversation:
		s.joinConversation(frame.Data)
	case models.EventSendMessage:
		s.sendMessage(ctx, frame.Data)
	default:
		s.log.Debug("ignoring event", zap.String("event", frame.Event))
	}

	return s.state != StateTerminated
}

// Disconnect marks the session terminated. The hub removes room membership
// when the connection unregisters.
func (s *Session) Disconnect() {
	s.state = StateTerminated
}

func (s *Session) authenticate(data json.RawMessage) {
	var p models.AuthenticatePayload
	if err := decode(data, &p); err != nil {
		s.reject(apperr.Unauthorized.New("malformed authenticate payload"))
		return
	}

	claims, err := s.tokens.Verify(p.Token)
	if err != nil {
		s.reject(err)
		return
	}

	switch s.state {
	case StateUnauthenticated:
		s.userID = claims.UserID
		s.state = StateAuthenticated
		s.log = s.log.With(zap.String("user", s.userID))
		s.rooms.Join(s.client, chat.UserRoom(s.userID))
		s.log.Debug("authenticated")
	case StateAuthenticated:
		if claims.UserID != s.userID {
			s.reject(apperr.Unauthorized.New("token belongs to another user"))
		}
	}
}

func (s *Session) reject(err error) {
	s.log.Info("rejecting connection", zap.Error(err))
	s.state = StateTerminated
	s.rooms.Terminate(s.client, models.EventUnauthorized, models.NoticePayload{Message: apperr.PublicMessage(err)})
}

func (s *Session) joinConversation(data json.RawMessage) {
	if s.state != StateAuthenticated {
		return
	}

	var p models.JoinConversationPayload
	if err := decode(data, &p); err != nil || p.ConversationID == "" {
		return
	}
	if s.opts.RestrictJoin && !chat.IsParticipant(p.ConversationID, s.userID) {
		s.log.Debug("join refused", zap.String("conversation", p.ConversationID))
		return
	}
	s.rooms.Join(s.client, chat.ConversationRoom(p.ConversationID))
}

func (s *Session) sendMessage(ctx context.Context, data json.RawMessage) {
	if s.state != StateAuthenticated {
		s.rooms.Emit(s.client, models.EventError, models.NoticePayload{Message: notAuthenticated})
		return
	}

	var p models.SendMessagePayload
	if err := decode(data, &p); err != nil {
		return
	}

	_, err := s.messages.SendMessage(ctx, s.userID, p.ReceiverID, p.Content, p.Meta)
	switch {
	case err == nil:
	case apperr.InvalidArgument.Has(err):
		s.log.Debug("dropping invalid message", zap.Error(err))
	default:
		s.log.Error("send message", zap.Error(err))
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
