package chathub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"bloodlink/backend/internal/models"
)

// DefaultNATSSubject is the core NATS subject shared by all instances.
const DefaultNATSSubject = "chat.broadcast"

// NatsBus fans envelopes out over a core NATS subject.
type NatsBus struct {
	Conn    *nats.Conn
	Subject string
	Log     *zap.Logger
}

// DialNATS connects to url and returns a bus on subject.
func DialNATS(url, subject string, log *zap.Logger) (*NatsBus, error) {
	nc, err := nats.Connect(url, nats.Name("bloodlink"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if subject == "" {
		subject = DefaultNATSSubject
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NatsBus{Conn: nc, Subject: subject, Log: log}, nil
}

func (b *NatsBus) Publish(ctx context.Context, env models.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return b.Conn.Publish(b.Subject, payload)
}

func (b *NatsBus) Subscribe(ctx context.Context) (<-chan models.Envelope, error) {
	msgs := make(chan *nats.Msg, subscriptionBuffer)
	sub, err := b.Conn.ChanSubscribe(b.Subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to '%s': %w", b.Subject, err)
	}
	if err := b.Conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}

	out := make(chan models.Envelope, subscriptionBuffer)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				var env models.Envelope
				if err := json.Unmarshal(msg.Data, &env); err != nil {
					b.Log.Warn("bad envelope on nats", zap.String("subject", msg.Subject), zap.Error(err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *NatsBus) Close() error {
	return b.Conn.Drain()
}
