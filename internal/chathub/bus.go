package chathub

import (
	"context"
	"errors"
	"sync"

	"bloodlink/backend/internal/models"
)

var errBusClosed = errors.New("chathub: bus subscription closed")

// subscriptionBuffer is the depth of each subscriber's envelope channel.
const subscriptionBuffer = 256

// Bus carries broadcast envelopes between hub instances. Every subscriber,
// including the publishing instance, receives every envelope.
type Bus interface {
	Publish(ctx context.Context, env models.Envelope) error
	// Subscribe returns a channel of envelopes that is closed once ctx is done.
	Subscribe(ctx context.Context) (<-chan models.Envelope, error)
	Close() error
}

// LocalBus delivers envelopes within the current process only.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[*localSub]struct{}
}

type localSub struct {
	ch   chan models.Envelope
	done <-chan struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*localSub]struct{})}
}

func (b *LocalBus) Publish(ctx context.Context, env models.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- env:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan models.Envelope, error) {
	sub := &localSub{
		ch:   make(chan models.Envelope, subscriptionBuffer),
		done: ctx.Done(),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch, nil
}

func (b *LocalBus) Close() error { return nil }
