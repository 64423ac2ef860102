// Package sse implements the EventSource port over an HTTP text/event-stream connection.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/session"
)

// eventBuffer keeps delivery in step with the reader.
const eventBuffer = 4

// DefaultHeaderTimeout bounds the wait for the stream's response headers.
const DefaultHeaderTimeout = 15 * time.Second

// Listener opens one status stream per Subscribe call.
type Listener struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewListener creates a listener for streams served under baseURL/events/{key}.
// A server that accepts the connection but sends no headers within headerTimeout
// fails the subscription. A non-positive headerTimeout uses DefaultHeaderTimeout.
func NewListener(baseURL string, headerTimeout time.Duration, logger *zap.Logger) *Listener {
	if headerTimeout <= 0 {
		headerTimeout = DefaultHeaderTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout

	return &Listener{
		baseURL: baseURL,
		// No client timeout: streams stay open until the flow ends.
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// Subscribe connects to the stream for streamKey. The connection lives until the
// subscription is closed, a terminal event arrives, or ctx is cancelled.
func (l *Listener) Subscribe(ctx context.Context, streamKey string) (domain.Subscription, error) {
	if streamKey == "" {
		return nil, domain.ErrMissingStreamKey
	}

	streamCtx, cancel := context.WithCancel(ctx)
	endpoint := l.baseURL + "/events/" + url.PathEscape(streamKey)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token, err := session.FromContext(ctx).Token(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrConnection, resp.StatusCode)
	}

	sub := &subscription{
		events: make(chan domain.PaymentEvent, eventBuffer),
		closed: make(chan struct{}),
		cancel: cancel,
		logger: l.logger.With(zap.String("stream_key", streamKey)),
	}
	go sub.read(resp.Body)

	l.logger.Debug("Event stream opened", zap.String("stream_key", streamKey))
	return sub, nil
}

type subscription struct {
	events chan domain.PaymentEvent
	closed chan struct{}
	cancel context.CancelFunc
	logger *zap.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
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
		s.cancel()
	})
	return nil
}

func (s *subscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *subscription) read(body io.ReadCloser) {
	defer close(s.events)
	defer body.Close()

	dec := newDecoder(body)
	for {
		f, err := dec.next()
		if err != nil {
			if !s.isClosed() {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				s.mu.Lock()
				s.err = fmt.Errorf("%w: %w", domain.ErrConnection, err)
				s.mu.Unlock()
				s.logger.Warn("Event stream ended", zap.Error(err))
			}
			return
		}

		event, err := DecodeEvent([]byte(f.Data))
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
			s.Close()
			return
		}
	}
}
