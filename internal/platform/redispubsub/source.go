// Package redispubsub implements the EventSource port over Redis pub/sub.
// The server publishes every payment status change on the channel user:{key}.
package redispubsub

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/platform/sse"
)

// ChannelPrefix is prepended to the stream key to form the channel name.
const ChannelPrefix = "user:"

// Source subscribes to payment status channels.
type Source struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSource creates a Source using client.
func NewSource(client *redis.Client, logger *zap.Logger) *Source {
	return &Source{client: client, logger: logger}
}

// Subscribe listens on the channel for streamKey until closed or a terminal event arrives.
func (s *Source) Subscribe(ctx context.Context, streamKey string) (domain.Subscription, error) {
	if streamKey == "" {
		return nil, domain.ErrMissingStreamKey
	}

	channel := ChannelPrefix + streamKey
	pubsub := s.client.Subscribe(ctx, channel)
	// Wait for the confirmation so no event published after Subscribe returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}

	sub := &subscription{
		pubsub: pubsub,
		events: make(chan domain.PaymentEvent, 4),
		closed: make(chan struct{}),
		logger: s.logger.With(zap.String("channel", channel)),
	}
	go sub.read(ctx, pubsub.Channel())

	s.logger.Debug("Subscribed to payment channel", zap.String("channel", channel))
	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	events chan domain.PaymentEvent
	closed chan struct{}
	logger *zap.Logger

	closeOnce   sync.Once
	releaseOnce sync.Once
	mu          sync.Mutex
	err         error
}

func (s *subscription) Events() <-chan domain.PaymentEvent {
	return s.events
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return s.release()
}

// release closes the underlying connection once.
func (s *subscription) release() error {
	var err error
	s.releaseOnce.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}

func (s *subscription) fail(err error) {
	select {
	case <-s.closed:
		return
	default:
	}
	s.mu.Lock()
	s.err = fmt.Errorf("%w: %w", domain.ErrConnection, err)
	s.mu.Unlock()
	s.logger.Warn("Payment channel ended", zap.Error(err))
}

func (s *subscription) read(ctx context.Context, messages <-chan *redis.Message) {
	defer close(s.events)

	for {
		var msg *redis.Message
		select {
		case m, ok := <-messages:
			if !ok {
				s.fail(io.ErrUnexpectedEOF)
				return
			}
			msg = m
		case <-ctx.Done():
			s.fail(ctx.Err())
			_ = s.release()
			return
		case <-s.closed:
			return
		}

		event, err := sse.DecodeEvent([]byte(msg.Payload))
		if err != nil {
			s.logger.Warn("Skipping event", zap.Error(err))
			continue
		}

		select {
		case s.events <- event:
		case <-s.closed:
			return
		}

		if event.State.IsTerminal() {
			_ = s.Close()
			return
		}
	}
}
