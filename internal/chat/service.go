// Package chat implements direct messaging: the conversation id scheme, the
// send use-case shared by the REST and realtime entry points, history reads
// and the per-user conversation list.
package chat

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/models"
)

// DefaultConversationLimit caps the conversation list.
const DefaultConversationLimit = 200

// placeholderName is shown for participants whose profile cannot be loaded.
const placeholderName = "User"

// MessageStore is the subset of the message log the service needs.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error)
	ListConversationHeads(ctx context.Context, userID string, limit int) ([]models.ConversationHead, error)
}

// UserDirectory resolves participant profiles.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Broadcaster delivers an event to every session joined to any of rooms.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, payload any, rooms ...string) error
}

// Service is the messaging use-case layer.
type Service struct {
	Messages MessageStore
	Users    UserDirectory
	Hub      Broadcaster
	Log      *zap.Logger

	// Now stamps new messages.
	Now func() time.Time
	// ConversationLimit caps ListConversations.
	ConversationLimit int
}

// NewService creates the messaging service.
func NewService(messages MessageStore, users UserDirectory, hub Broadcaster, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Messages:          messages,
		Users:             users,
		Hub:               hub,
		Log:               log,
		Now:               time.Now,
		ConversationLimit: DefaultConversationLimit,
	}
}

// SendMessage validates, persists and then broadcasts a message. The
// broadcast never happens unless the append succeeded, so no client can see
// a message that a later history read would not return.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string, meta map[string]any) (*models.MessageEvent, error) {
	if senderID == "" || !ValidID(senderID) {
		return nil, apperr.Unauthorized.New("not authenticated")
	}
	if !ValidID(receiverID) {
		return nil, apperr.InvalidArgument.New("receiverId is missing or malformed")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidArgument.New("content is required")
	}

	conversationID := ConversationID(senderID, receiverID)
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		Meta:           meta,
		CreatedAt:      s.Now(),
	}
	if err := s.Messages.AppendMessage(ctx, msg); err != nil {
		s.Log.Error("append message failed",
			zap.String("conversation", conversationID), zap.Error(err))
		return nil, classify(err)
	}

	event := &models.MessageEvent{Message: *msg, SenderName: s.displayName(ctx, senderID)}

	rooms := []string{UserRoom(receiverID), UserRoom(senderID), ConversationRoom(conversationID)}
	if err := s.Hub.Broadcast(ctx, models.EventNewMessage, event, rooms...); err != nil {
		// The message is durable; connected clients will see it on their
		// next history read.
		s.Log.Warn("broadcast message failed",
			zap.String("message", msg.ID), zap.Error(err))
	}

	return event, nil
}

// displayName resolves the sender name for enrichment. Failures are not
// errors: the message is delivered without a name.
func (s *Service) displayName(ctx context.Context, userID string) string {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		s.Log.Debug("sender name lookup failed", zap.String("user", userID), zap.Error(err))
		return ""
	}
	return user.Name
}

// GetMessages returns the history between userID and otherID, oldest first,
// and marks every message addressed to userID as read. Fetching is the read
// receipt; there is no separate acknowledgment.
func (s *Service) GetMessages(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	if userID == "" {
		return nil, apperr.Unauthorized.New("not authenticated")
	}
	if !ValidID(otherID) {
		return nil, apperr.InvalidArgument.New("user id %q is malformed", otherID)
	}

	conversationID := ConversationID(userID, otherID)
	messages, err := s.Messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, classify(err)
	}

	if _, err := s.Messages.MarkRead(ctx, conversationID, userID); err != nil {
		return nil, classify(err)
	}
	for i := range messages {
		if messages[i].ReceiverID == userID {
			messages[i].Read = true
		}
	}
	return messages, nil
}

// ListConversations builds the conversation list of userID, newest activity
// first. Profile lookups that fail degrade to a placeholder participant and
// never fail the listing.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if userID == "" {
		return nil, apperr.Unauthorized.New("not authenticated")
	}

	heads, err := s.Messages.ListConversationHeads(ctx, userID, s.ConversationLimit)
	if err != nil {
		return nil, classify(err)
	}

	summaries := make([]models.ConversationSummary, len(heads))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for i, head := range heads {
		i, head := i, head
		group.Go(func() error {
			otherID := OtherParticipant(head.ConversationID, userID)
			summaries[i] = models.ConversationSummary{
				ConversationID:   head.ConversationID,
				OtherParticipant: s.profile(gctx, otherID),
				LastMessage:      head.LastMessage,
				UpdatedAt:        head.LastMessage.CreatedAt,
				UnreadCount:      head.UnreadCount,
			}
			return nil
		})
	}
	_ = group.Wait()

	slices.SortStableFunc(summaries, func(a, b models.ConversationSummary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit := s.ConversationLimit; limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Service) profile(ctx context.Context, userID string) models.UserProfile {
	placeholder := models.UserProfile{ID: userID, Name: placeholderName}
	if !ValidID(userID) {
		return placeholder
	}
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		s.Log.Debug("participant lookup failed", zap.String("user", userID), zap.Error(err))
		return placeholder
	}
	return user.Profile()
}

// classify keeps taxonomy errors as they are and treats anything else coming
// out of a store as a store failure.
func classify(err error) error {
	switch {
	case apperr.InvalidArgument.Has(err),
		apperr.NotFound.Has(err),
		apperr.StoreFailure.Has(err),
		apperr.Unauthorized.Has(err):
		return err
	default:
		return apperr.StoreFailure.Wrap(err)
	}
}
