package chat_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bloodlink/backend/internal/models"
)

// MockBroadcaster records every broadcast.
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, event string, payload any, rooms ...string) error {
	args := m.Called(event, payload, rooms)
	return args.Error(0)
}

// MockMessageStore lets tests inject store failures.
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockMessageStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageStore) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	args := m.Called(conversationID, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageStore) ListConversationHeads(ctx context.Context, userID string, limit int) ([]models.ConversationHead, error) {
	args := m.Called(userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationHead), args.Error(1)
}
