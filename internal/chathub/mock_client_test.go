package chathub_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bloodlink/backend/internal/chathub"
	"bloodlink/backend/internal/models"
)

type MockClient struct {
	id   string
	send chan models.Frame

	mu     sync.Mutex
	closed bool
}

func newMockClient(id string) *MockClient {
	return newMockClientWithBuffer(id, 16)
}

func newMockClientWithBuffer(id string, size int) *MockClient {
	return &MockClient{id: id, send: make(chan models.Frame, size)}
}

func (c *MockClient) ID() string                           { return c.id }
func (c *MockClient) GetSendChannel() chan<- models.Frame { return c.send }
func (c *MockClient) Run()                                 {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	close(c.send)
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the next frame or fails the test.
func (c *MockClient) next(t *testing.T) models.Frame {
	t.Helper()
	select {
	case f, ok := <-c.send:
		require.True(t, ok, "client %s was closed", c.id)
		return f
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.id)
		return models.Frame{}
	}
}

// quiet asserts that nothing arrives for a short while.
func (c *MockClient) quiet(t *testing.T) {
	t.Helper()
	select {
	case f, ok := <-c.send:
		if ok {
			t.Fatalf("client %s unexpectedly received %q", c.id, f.Event)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

// MockRooms records what a session asks of the hub.
type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) Join(c chathub.Client, room string) {
	m.Called(c, room)
}

func (m *MockRooms) Emit(c chathub.Client, event string, payload any) {
	m.Called(c, event, payload)
}

func (m *MockRooms) Terminate(c chathub.Client, event string, payload any) {
	m.Called(c, event, payload)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendMessage(ctx context.Context, senderID, receiverID, content string, meta map[string]any) (*models.MessageEvent, error) {
	args := m.Called(ctx, senderID, receiverID, content, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageEvent), args.Error(1)
}

func frame(t *testing.T, event string, payload any) models.Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.Frame{Event: event, Data: data}
}
