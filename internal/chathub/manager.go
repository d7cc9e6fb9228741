// Package chathub is the realtime layer: the hub that tracks connections and
// room membership, the per-connection session state machine, the websocket
// transport and the brokers that carry broadcasts between instances.
package chathub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"bloodlink/backend/internal/models"
)

type joinRequest struct {
	client Client
	room   string
}

type directFrame struct {
	client Client
	frame  models.Frame
	// terminate unregisters the client once the frame is queued.
	terminate bool
}

// ManagerService owns every local connection and its rooms. All of its state
// is touched only from the Run goroutine; other goroutines talk to it over
// channels.
type ManagerService struct {
	Bus Bus
	Log *zap.Logger

	RegisterCh   chan Client
	UnregisterCh chan Client
	joinCh       chan joinRequest
	emitCh       chan directFrame

	clients map[Client]map[string]struct{}
	rooms   map[string]map[Client]struct{}

	done chan struct{}
}

// NewManagerService creates a hub publishing through bus.
func NewManagerService(bus Bus, log *zap.Logger) *ManagerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ManagerService{
		Bus:          bus,
		Log:          log,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		joinCh:       make(chan joinRequest),
		emitCh:       make(chan directFrame),
		clients:      make(map[Client]map[string]struct{}),
		rooms:        make(map[string]map[Client]struct{}),
		done:         make(chan struct{}),
	}
}

// Run subscribes to the bus and serves hub requests until ctx is done. On
// return every local client has been closed.
func (m *ManagerService) Run(ctx context.Context) error {
	defer close(m.done)

	envelopes, err := m.Bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-m.RegisterCh:
			if _, ok := m.clients[client]; !ok {
				m.clients[client] = make(map[string]struct{})
			}

		case client := <-m.UnregisterCh:
			m.drop(client)

		case req := <-m.joinCh:
			m.join(req.client, req.room)

		case d := <-m.emitCh:
			if _, ok := m.clients[d.client]; !ok {
				continue
			}
			m.send(d.client, d.frame)
			if d.terminate {
				m.drop(d.client)
			}

		case env, ok := <-envelopes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errBusClosed
			}
			m.deliver(env)
		}
	}
}

// Register adds a connection to the hub.
func (m *ManagerService) Register(c Client) {
	select {
	case m.RegisterCh <- c:
	case <-m.done:
	}
}

// Unregister removes a connection from every room and closes it. Unknown or
// already removed clients are ignored.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Join adds c to room. Joining twice has no further effect.
func (m *ManagerService) Join(c Client, room string) {
	select {
	case m.joinCh <- joinRequest{client: c, room: room}:
	case <-m.done:
	}
}

// Emit queues frame for c alone.
func (m *ManagerService) Emit(c Client, event string, payload any) {
	m.direct(c, event, payload, false)
}

// Terminate queues frame for c and then closes the connection.
func (m *ManagerService) Terminate(c Client, event string, payload any) {
	m.direct(c, event, payload, true)
}

func (m *ManagerService) direct(c Client, event string, payload any, terminate bool) {
	frame, err := newFrame(event, payload)
	if err != nil {
		m.Log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case m.emitCh <- directFrame{client: c, frame: frame, terminate: terminate}:
	case <-m.done:
	}
}

// Broadcast publishes event to every member of rooms on every instance. A
// connection that belongs to several of the rooms receives one copy per
// room. Repeated room names count once; no rooms is a no-op.
func (m *ManagerService) Broadcast(ctx context.Context, event string, payload any, rooms ...string) error {
	rooms = uniqueRooms(rooms)
	if len(rooms) == 0 {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.Bus.Publish(ctx, models.Envelope{Event: event, Rooms: rooms, Data: data})
}

func (m *ManagerService) join(c Client, room string) {
	memberOf, ok := m.clients[c]
	if !ok {
		return
	}
	memberOf[room] = struct{}{}

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[Client]struct{})
		m.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (m *ManagerService) deliver(env models.Envelope) {
	frame := env.Frame()

	var slow []Client
	for _, room := range env.Rooms {
		if room == models.RoomAll {
			for c := range m.clients {
				if !m.trySend(c, frame) {
					slow = append(slow, c)
				}
			}
			continue
		}
		for c := range m.rooms[room] {
			if !m.trySend(c, frame) {
				slow = append(slow, c)
			}
		}
	}

	for _, c := range slow {
		if _, ok := m.clients[c]; !ok {
			continue
		}
		m.Log.Warn("dropping slow client", zap.String("connection", c.ID()))
		m.drop(c)
	}
}

func (m *ManagerService) send(c Client, frame models.Frame) {
	if !m.trySend(c, frame) {
		m.Log.Warn("dropping slow client", zap.String("connection", c.ID()))
		m.drop(c)
	}
}

func (m *ManagerService) trySend(c Client, frame models.Frame) bool {
	select {
	case c.GetSendChannel() <- frame:
		return true
	default:
		return false
	}
}

func (m *ManagerService) drop(c Client) {
	memberOf, ok := m.clients[c]
	if !ok {
		return
	}
	for room := range memberOf {
		members := m.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	delete(m.clients, c)
	c.Close()
}

func (m *ManagerService) closeAll() {
	for c := range m.clients {
		m.drop(c)
	}
}

func newFrame(event string, payload any) (models.Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return models.Frame{}, err
	}
	return models.Frame{Event: event, Data: data}, nil
}

func uniqueRooms(rooms []string) []string {
	seen := make(map[string]struct{}, len(rooms))
	out := rooms[:0:0]
	for _, r := range rooms {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
