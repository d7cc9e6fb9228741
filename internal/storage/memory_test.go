package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/backend/internal/apperr"
	"bloodlink/backend/internal/chat"
	"bloodlink/backend/internal/models"
	"bloodlink/backend/internal/storage"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func message(from, to, content string, at time.Time) *models.Message {
	return &models.Message{
		ConversationID: chat.ConversationID(from, to),
		SenderID:       from,
		ReceiverID:     to,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestMemoryStore_AppendRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	err := s.AppendMessage(ctx, message("u1", "u2", "   ", base))
	assert.True(t, apperr.InvalidArgument.Has(err))

	err = s.AppendMessage(ctx, message("u1", "bad_id", "hi", base))
	assert.True(t, apperr.InvalidArgument.Has(err))

	msgs, err := s.ListByConversation(ctx, chat.ConversationID("u1", "u2"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStore_AppendAssignsID(t *testing.T) {
	s := storage.NewMemoryStore()
	msg := message("u1", "u2", "hello", time.Time{})

	require.NoError(t, s.AppendMessage(context.Background(), msg))

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.NotNil(t, msg.Meta)
}

// TestMemoryStore_ListOrdersByCreatedAt inserts out of order and concurrently.
func TestMemoryStore_ListOrdersByCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	times := []time.Time{base.Add(3 * time.Second), base.Add(1 * time.Second), base.Add(2 * time.Second)}
	var wg sync.WaitGroup
	for i, at := range times {
		wg.Add(1)
		go func(i int, at time.Time) {
			defer wg.Done()
			assert.NoError(t, s.AppendMessage(ctx, message("u1", "u2", fmt.Sprintf("m%d", i), at)))
		}(i, at)
	}
	wg.Wait()

	msgs, err := s.ListByConversation(ctx, "u1_u2")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].Content)
	assert.Equal(t, "m2", msgs[1].Content)
	assert.Equal(t, "m0", msgs[2].Content)
}

func TestMemoryStore_MarkReadScopedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	require.NoError(t, s.AppendMessage(ctx, message("u1", "u2", "a", base)))
	require.NoError(t, s.AppendMessage(ctx, message("u1", "u2", "b", base.Add(time.Second))))
	require.NoError(t, s.AppendMessage(ctx, message("u2", "u1", "c", base.Add(2*time.Second))))
	require.NoError(t, s.AppendMessage(ctx, message("u3", "u2", "other conversation", base)))

	n, err := s.MarkRead(ctx, "u1_u2", "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.MarkRead(ctx, "u1_u2", "u2")
	require.NoError(t, err)
	assert.Zero(t, n, "second sweep is a no-op")

	msgs, err := s.ListByConversation(ctx, "u1_u2")
	require.NoError(t, err)
	for _, m := range msgs {
		assert.Equal(t, m.ReceiverID == "u2", m.Read, "message %q", m.Content)
	}

	other, err := s.ListByConversation(ctx, "u2_u3")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.False(t, other[0].Read)
}

func TestMemoryStore_ConversationHeads(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	require.NoError(t, s.AppendMessage(ctx, message("u1", "u2", "old", base)))
	require.NoError(t, s.AppendMessage(ctx, message("u2", "u1", "reply", base.Add(time.Minute))))
	require.NoError(t, s.AppendMessage(ctx, message("u3", "u2", "newest", base.Add(time.Hour))))
	require.NoError(t, s.AppendMessage(ctx, message("u3", "u2", "second unread", base.Add(30*time.Minute))))
	require.NoError(t, s.AppendMessage(ctx, message("u4", "u5", "unrelated", base.Add(2*time.Hour))))

	heads, err := s.ListConversationHeads(ctx, "u2", 200)
	require.NoError(t, err)
	require.Len(t, heads, 2)

	assert.Equal(t, "u2_u3", heads[0].ConversationID)
	assert.Equal(t, "newest", heads[0].LastMessage.Content)
	assert.Equal(t, int64(2), heads[0].UnreadCount)

	assert.Equal(t, "u1_u2", heads[1].ConversationID)
	assert.Equal(t, "reply", heads[1].LastMessage.Content)
	assert.Equal(t, int64(1), heads[1].UnreadCount)

	capped, err := s.ListConversationHeads(ctx, "u2", 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	user := &models.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)

	err := s.CreateUser(ctx, &models.User{Name: "Eve", Email: "alice@example.com"})
	assert.True(t, apperr.InvalidArgument.Has(err))

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, s.UpdateUserRoles(ctx, user.ID, []string{models.RoleAdmin}))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.HasRole(models.RoleAdmin))

	_, err = s.GetUserByID(ctx, "missing")
	assert.True(t, apperr.NotFound.Has(err))
}

func TestMemoryStore_DonorFilters(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	district := func(v string) *string { return &v }
	donors := []*models.Donor{
		{Name: "Asha", Phone: "0711111111", BloodGroup: "O+", District: district("Colombo"), Available: true},
		{Name: "Bimal", Phone: "0722222222", BloodGroup: "A-", District: district("Kandy"), Available: false},
		{Name: "Chathu", Phone: "0733333333", BloodGroup: "O+", District: district("colombo 7"), Available: false},
	}
	for _, d := range donors {
		require.NoError(t, s.CreateDonor(ctx, d))
	}

	list, total, err := s.ListDonors(ctx, models.DonorFilter{BloodGroup: "O+", Page: 1, Limit: 20, Sort: "name"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "Asha", list[0].Name)

	available := false
	list, total, err = s.ListDonors(ctx, models.DonorFilter{District: "COLOMBO", Available: &available, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Chathu", list[0].Name)

	list, total, err = s.ListDonors(ctx, models.DonorFilter{Query: "0722", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Bimal", list[0].Name)

	list, total, err = s.ListDonors(ctx, models.DonorFilter{Page: 2, Limit: 2, Sort: "name"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Chathu", list[0].Name)

	list, _, err = s.ListDonors(ctx, models.DonorFilter{Page: 5, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_DonorLifecycle(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	d := &models.Donor{Name: "Asha", Phone: "0711111111", BloodGroup: "B+", Available: true}
	require.NoError(t, s.CreateDonor(ctx, d))

	last := time.Now().AddDate(0, -1, 0)
	d.LastDonationDate = &last
	require.NoError(t, s.SaveDonor(ctx, d))

	got, err := s.GetDonor(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.Available, "donated a month ago")
	require.NotNil(t, got.NextEligibleDate)

	require.NoError(t, s.DeleteDonor(ctx, d.ID))
	_, err = s.GetDonor(ctx, d.ID)
	assert.True(t, apperr.NotFound.Has(err))
	assert.True(t, apperr.NotFound.Has(s.DeleteDonor(ctx, d.ID)))
}
