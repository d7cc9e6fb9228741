package chathub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodlink/backend/internal/chathub"
	"bloodlink/backend/internal/models"
)

func startHub(t *testing.T) *chathub.ManagerService {
	t.Helper()
	hub := chathub.NewManagerService(chathub.NewLocalBus(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errc)
	})
	return hub
}

func TestManager_FanOutDuplicatesAcrossRooms(t *testing.T) {
	// Arrange
	hub := startHub(t)
	sender := newMockClient("sender")
	receiver := newMockClient("receiver")
	hub.Register(sender)
	hub.Register(receiver)
	hub.Join(sender, "user:u1")
	hub.Join(sender, "conv:u1_u2")
	hub.Join(receiver, "user:u2")

	// Act
	err := hub.Broadcast(context.Background(), models.EventNewMessage, map[string]string{"_id": "m1"},
		"user:u2", "user:u1", "conv:u1_u2")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, models.EventNewMessage, receiver.next(t).Event)
	receiver.quiet(t)

	first, second := sender.next(t), sender.next(t)
	assert.JSONEq(t, `{"_id":"m1"}`, string(first.Data))
	assert.Equal(t, first, second)
	sender.quiet(t)
}

func TestManager_RepeatedRoomCountsOnce(t *testing.T) {
	hub := startHub(t)
	c := newMockClient("c")
	hub.Register(c)
	hub.Join(c, "user:u1")
	hub.Join(c, "user:u1")

	require.NoError(t, hub.Broadcast(context.Background(), "ping", nil, "user:u1", "user:u1"))

	c.next(t)
	c.quiet(t)
}

func TestManager_NoRoomsIsNoop(t *testing.T) {
	hub := startHub(t)
	c := newMockClient("c")
	hub.Register(c)

	assert.NoError(t, hub.Broadcast(context.Background(), "ping", nil))
	assert.NoError(t, hub.Broadcast(context.Background(), "ping", nil, "user:nobody"))

	c.quiet(t)
}

func TestManager_RoomAllReachesEveryConnection(t *testing.T) {
	hub := startHub(t)
	anonymous := newMockClient("anonymous")
	member := newMockClient("member")
	hub.Register(anonymous)
	hub.Register(member)
	hub.Join(member, "user:u1")

	payload := models.RemoveDonorPayload{ID: "d1"}
	require.NoError(t, hub.Broadcast(context.Background(), models.EventRemoveDonor, payload, models.RoomAll))

	for _, c := range []*MockClient{anonymous, member} {
		f := c.next(t)
		assert.Equal(t, models.EventRemoveDonor, f.Event)

		var got models.RemoveDonorPayload
		require.NoError(t, json.Unmarshal(f.Data, &got))
		assert.Equal(t, payload, got)
	}
}

func TestManager_UnregisterIsIdempotent(t *testing.T) {
	hub := startHub(t)
	c := newMockClient("c")
	hub.Register(c)
	hub.Join(c, "user:u1")

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Eventually(t, c.IsClosed, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Broadcast(context.Background(), "ping", nil, "user:u1"))
	c.quiet(t)
}

func TestManager_JoinBeforeRegisterIsIgnored(t *testing.T) {
	hub := startHub(t)
	c := newMockClient("c")
	hub.Join(c, "user:u1")

	require.NoError(t, hub.Broadcast(context.Background(), "ping", nil, "user:u1"))
	c.quiet(t)
}

func TestManager_TerminateFlushesThenCloses(t *testing.T) {
	hub := startHub(t)
	c := newMockClient("c")
	hub.Register(c)

	hub.Terminate(c, models.EventUnauthorized, models.NoticePayload{Message: "invalid token"})

	f := c.next(t)
	assert.Equal(t, models.EventUnauthorized, f.Event)
	assert.JSONEq(t, `{"message":"invalid token"}`, string(f.Data))
	assert.Eventually(t, c.IsClosed, time.Second, 10*time.Millisecond)
}

func TestManager_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := newMockClientWithBuffer("slow", 1)
	fast := newMockClient("fast")
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, "conv:a_b")
	hub.Join(fast, "conv:a_b")

	require.NoError(t, hub.Broadcast(context.Background(), "one", nil, "conv:a_b"))
	require.NoError(t, hub.Broadcast(context.Background(), "two", nil, "conv:a_b"))

	assert.Equal(t, "one", fast.next(t).Event)
	assert.Equal(t, "two", fast.next(t).Event)

	assert.Eventually(t, slow.IsClosed, time.Second, 10*time.Millisecond)
	assert.Equal(t, "one", slow.next(t).Event)
}

func TestManager_RunClosesClientsOnShutdown(t *testing.T) {
	hub := chathub.NewManagerService(chathub.NewLocalBus(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Run(ctx) }()

	c := newMockClient("c")
	hub.Register(c)

	cancel()
	require.NoError(t, <-errc)
	assert.True(t, c.IsClosed())

	// Requests after shutdown return instead of blocking.
	hub.Register(newMockClient("late"))
	hub.Emit(c, "ping", nil)
}
