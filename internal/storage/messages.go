package storage

import (
	"context"
	"strings"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/chat"
	"bloodlink/backend/internal/models"
)

// validateMessage enforces the append contract shared by every driver.
func validateMessage(msg *models.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return apperr.InvalidArgument.New("content is required")
	}
	if !chat.ValidID(msg.ReceiverID) {
		return apperr.InvalidArgument.New("receiverId %q is not a valid identifier", msg.ReceiverID)
	}
	return nil
}

// AppendMessage inserts msg. The ID is filled by the BeforeCreate hook.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	return wrapErr(s.DB.WithContext(ctx).Create(msg).Error, "message")
}

// ListByConversation loads the full history of a conversation, sorted by
// creation time.
func (s *Service) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, wrapErr(err, "conversation")
	}
	return messages, nil
}

// MarkRead is a single multi-row update, so it is atomic with respect to
// concurrent appends.
func (s *Service) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, receiverID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, wrapErr(result.Error, "conversation")
	}
	return result.RowsAffected, nil
}

// ListConversationHeads uses DISTINCT ON to pick the newest message of each
// conversation, then counts unread messages for the same conversations.
func (s *Service) ListConversationHeads(ctx context.Context, userID string, limit int) ([]models.ConversationHead, error) {
	rawSQL := `
        SELECT *
        FROM (
            SELECT DISTINCT ON (conversation_id) *
            FROM messages
            WHERE sender_id = ? OR receiver_id = ?
            ORDER BY conversation_id, created_at DESC
        ) AS latest
        ORDER BY created_at DESC
        LIMIT ?
    `

	var latest []models.Message
	if err := s.DB.WithContext(ctx).Raw(rawSQL, userID, userID, limit).Scan(&latest).Error; err != nil {
		return nil, wrapErr(err, "conversation")
	}
	if len(latest) == 0 {
		return []models.ConversationHead{}, nil
	}

	ids := make([]string, len(latest))
	for i, m := range latest {
		ids[i] = m.ConversationID
	}

	var rows []struct {
		ConversationID string
		Unread         int64
	}
	err := s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND is_read = ? AND conversation_id IN ?", userID, false, ids).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapErr(err, "conversation")
	}

	unread := make(map[string]int64, len(rows))
	for _, r := range rows {
		unread[r.ConversationID] = r.Unread
	}

	heads := make([]models.ConversationHead, len(latest))
	for i, m := range latest {
		heads[i] = models.ConversationHead{
			ConversationID: m.ConversationID,
			LastMessage:    m,
			UnreadCount:    unread[m.ConversationID],
		}
	}
	return heads, nil
}
