package payment

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/session"
	"github.com/ryfty/ryfty-payments/internal/validation"
)

const (
	// DefaultTimeout bounds the total wait for a terminal event. Progress events do not extend it.
	DefaultTimeout = 5 * time.Minute
	// DefaultSuccessDelay keeps the success state visible before the success callback runs.
	DefaultSuccessDelay = 2 * time.Second

	watchBuffer = 16
)

// Status texts shown next to the flow state.
const (
	StatusSubmitting     = "Submitting request..."
	StatusWaiting        = "Waiting for payment..."
	StatusProcessing     = "Processing payment..."
	StatusSucceeded      = "Payment successful"
	StatusFailed         = "Payment failed"
	StatusTimedOut       = "Payment timeout - please check your phone or try again"
	StatusConnectionLost = "Connection error"
)

// Snapshot is a point-in-time copy of a flow.
type Snapshot struct {
	FlowID     string                 `json:"flow_id"`
	State      domain.FlowState       `json:"state"`
	StatusText string                 `json:"status_text"`
	Busy       bool                   `json:"busy"`
	Attempt    int                    `json:"attempt"`
	Order      *domain.PaymentOrder   `json:"order,omitempty"`
	Request    *domain.PaymentRequest `json:"request,omitempty"`
	// TransactionID is set once the gateway confirmed the payment.
	TransactionID string `json:"transaction_id,omitempty"`
	// Error is the user-facing failure message. Rejections carry the server text verbatim.
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ControllerOptions configures a Controller. Zero durations fall back to the defaults.
type ControllerOptions struct {
	Timeout      time.Duration
	SuccessDelay time.Duration
	// OnSuccess runs exactly once per successful attempt, on its own goroutine.
	OnSuccess func(Snapshot)
	Metrics   *Metrics
	Logger    *zap.Logger
	Validator *validation.Validator
}

// Controller drives one payment or withdrawal confirmation from initiation to a terminal state.
//
// All state is owned by a single event loop goroutine. Initiation results, stream events,
// stream termination and the timeout are posted to the loop tagged with the attempt that
// produced them, and anything from an older attempt is dropped.
type Controller struct {
	id        string
	initiator domain.PaymentInitiator
	source    domain.EventSource
	opts      ControllerOptions
	logger    *zap.Logger

	cmds     chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	latest   atomic.Pointer[Snapshot]

	// Owned by the event loop.
	state         domain.FlowState
	statusText    string
	attempt       int
	order         *domain.PaymentOrder
	session       *session.Session
	request       *domain.PaymentRequest
	transactionID string
	failure       string
	cancelAttempt context.CancelFunc
	sub           domain.Subscription
	timer         *time.Timer
	success       *pendingSuccess
	watchers      map[int]chan Snapshot
	nextWatcher   int
}

type pendingSuccess struct {
	snapshot Snapshot
	timer    *time.Timer
}

// NewController creates an idle controller and starts its event loop.
// Call Stop to release it.
func NewController(id string, initiator domain.PaymentInitiator, source domain.EventSource, opts ControllerOptions) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SuccessDelay < 0 {
		opts.SuccessDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}

	c := &Controller{
		id:        id,
		initiator: initiator,
		source:    source,
		opts:      opts,
		logger:    opts.Logger.With(zap.String("flow_id", id)),
		cmds:      make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     domain.StateIdle,
		watchers:  make(map[int]chan Snapshot),
	}
	c.latest.Store(c.snapshotPtr())
	go c.run()
	return c
}

// ID returns the flow id.
func (c *Controller) ID() string {
	return c.id
}

// Start validates order and sends the initiation request. It returns as soon as the
// request is in flight. Validation errors are returned directly and leave the flow Idle.
// The session in ctx authenticates the request; ctx itself is not retained.
func (c *Controller) Start(ctx context.Context, order domain.PaymentOrder) error {
	order, err := validateOrder(c.opts.Validator, order)
	if err != nil {
		return err
	}
	sess := session.FromContext(ctx)

	var result error
	if err := c.do(func() {
		if c.state != domain.StateIdle {
			result = c.invalidTransition("start")
			return
		}
		c.order = &order
		c.session = sess
		c.begin()
	}); err != nil {
		return err
	}
	return result
}

// Retry starts a fresh attempt for the same order from Failed, TimedOut or ConnectionError.
// A session in ctx replaces the one used by the previous attempt.
func (c *Controller) Retry(ctx context.Context) error {
	sess := session.FromContext(ctx)

	var result error
	if err := c.do(func() {
		if !c.state.IsRetryable() || c.order == nil {
			result = c.invalidTransition("retry")
			return
		}
		if sess != nil {
			c.session = sess
		}
		c.release()
		c.begin()
	}); err != nil {
		return err
	}
	return result
}

// Close cancels whatever the flow is doing and returns it to Idle.
// It is safe to call from any state, any number of times, and after Stop.
func (c *Controller) Close() {
	_ = c.do(c.closeFlow)
}

// Stop closes the flow and terminates the event loop. Watch channels are closed.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
	<-c.done
}

// Snapshot returns the current state of the flow.
func (c *Controller) Snapshot() Snapshot {
	return *c.latest.Load()
}

// Watch returns a channel that receives the current snapshot followed by one snapshot per
// transition. Slow readers skip intermediate snapshots but always see the latest one.
// The returned function stops the subscription.
func (c *Controller) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, watchBuffer)
	id := -1
	if err := c.do(func() {
		id = c.nextWatcher
		c.nextWatcher++
		c.watchers[id] = ch
		ch <- *c.snapshotPtr()
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			_ = c.do(func() {
				if w, ok := c.watchers[id]; ok {
					delete(c.watchers, id)
					close(w)
				}
			})
		})
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			c.closeFlow()
			for id, w := range c.watchers {
				delete(c.watchers, id)
				close(w)
			}
			c.logger.Debug("Flow controller stopped")
			return
		}
	}
}

// do runs fn on the event loop and waits for it to finish.
func (c *Controller) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case c.cmds <- func() {
		defer close(finished)
		fn()
	}:
	case <-c.quit:
		return domain.ErrControllerStopped
	}
	<-finished
	return nil
}

// post queues fn on the event loop without waiting. It reports false once the loop has stopped.
func (c *Controller) post(fn func()) bool {
	select {
	case c.cmds <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// begin starts a new attempt. Must run on the event loop.
func (c *Controller) begin() {
	c.attempt++
	attempt := c.attempt
	order := *c.order
	sess := c.session

	c.request = nil
	c.transactionID = ""
	c.failure = ""

	ctx, cancel := context.WithCancel(session.WithContext(context.Background(), sess))
	c.cancelAttempt = cancel
	c.transition(domain.StateAwaitingInitiation, StatusSubmitting)

	go c.initiate(ctx, attempt, order, sess)
}

// initiate runs off the loop: it sends the request and opens the stream for it.
func (c *Controller) initiate(ctx context.Context, attempt int, order domain.PaymentOrder, sess *session.Session) {
	req, err := c.initiator.Initiate(ctx, order)
	if err != nil {
		c.post(func() { c.initiationFailed(attempt, err) })
		return
	}

	streamKey := req.StreamKey
	if streamKey == "" {
		streamKey = sess.UserID()
	}

	var sub domain.Subscription
	if streamKey == "" {
		err = domain.ErrMissingStreamKey
	} else {
		sub, err = c.source.Subscribe(ctx, streamKey)
	}

	if !c.post(func() { c.streamOpened(attempt, req, sub, err) }) && sub != nil {
		_ = sub.Close()
	}
}

func (c *Controller) initiationFailed(attempt int, err error) {
	if attempt != c.attempt || c.state != domain.StateAwaitingInitiation {
		return
	}
	c.logger.Warn("Initiation failed", zap.Int("attempt", attempt), zap.Error(err))
	c.failure = domain.UserMessage(err)
	c.release()
	c.transition(domain.StateFailed, StatusFailed)
}

func (c *Controller) streamOpened(attempt int, req *domain.PaymentRequest, sub domain.Subscription, err error) {
	if attempt != c.attempt || c.state != domain.StateAwaitingInitiation {
		if sub != nil {
			_ = sub.Close()
		}
		return
	}

	c.request = req
	if err != nil {
		c.logger.Warn("Event stream unavailable", zap.Int("attempt", attempt), zap.Error(err))
		c.failure = StatusConnectionLost
		c.release()
		c.transition(domain.StateConnectionError, StatusConnectionLost)
		return
	}

	c.sub = sub
	c.opts.Metrics.streamOpened()
	c.timer = time.AfterFunc(c.opts.Timeout, func() {
		c.post(func() { c.timedOut(attempt) })
	})
	c.opts.Metrics.timerArmed()

	c.transition(domain.StateWaitingForConfirmation, StatusWaiting)
	go c.pump(attempt, sub)
}

// pump forwards stream events to the loop in arrival order.
func (c *Controller) pump(attempt int, sub domain.Subscription) {
	for event := range sub.Events() {
		if !c.post(func() { c.handleEvent(attempt, event) }) {
			return
		}
	}
	err := sub.Err()
	c.post(func() { c.streamEnded(attempt, err) })
}

func (c *Controller) handleEvent(attempt int, event domain.PaymentEvent) {
	if attempt != c.attempt || c.state != domain.StateWaitingForConfirmation {
		return
	}

	switch event.State {
	case domain.EventPendingConfirmation:
		c.transition(domain.StateWaitingForConfirmation, StatusProcessing)
	case domain.EventSuccess:
		c.transactionID = event.TransactionID
		c.release()
		c.transition(domain.StateSucceeded, StatusSucceeded)
		c.scheduleSuccess()
	case domain.EventFailed:
		c.failure = event.Description
		if c.failure == "" {
			c.failure = StatusFailed
		}
		c.release()
		c.transition(domain.StateFailed, StatusFailed)
	}
}

func (c *Controller) streamEnded(attempt int, err error) {
	if attempt != c.attempt || c.state != domain.StateWaitingForConfirmation {
		return
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.logger.Warn("Event stream lost", zap.Int("attempt", attempt), zap.Error(err))
	c.failure = StatusConnectionLost
	c.release()
	c.transition(domain.StateConnectionError, StatusConnectionLost)
}

func (c *Controller) timedOut(attempt int) {
	if attempt != c.attempt || c.state != domain.StateWaitingForConfirmation {
		return
	}
	// The timer already fired; release must not count it twice.
	c.timer = nil
	c.opts.Metrics.timerCleared()
	c.failure = StatusTimedOut
	c.release()
	c.transition(domain.StateTimedOut, StatusTimedOut)
}

func (c *Controller) scheduleSuccess() {
	if c.opts.OnSuccess == nil {
		return
	}
	p := &pendingSuccess{snapshot: *c.snapshotPtr()}
	p.timer = time.AfterFunc(c.opts.SuccessDelay, func() {
		c.post(func() {
			if c.success == p {
				c.fireSuccess()
			}
		})
	})
	c.success = p
}

// fireSuccess hands the pending success to the callback exactly once.
func (c *Controller) fireSuccess() {
	p := c.success
	if p == nil {
		return
	}
	c.success = nil
	p.timer.Stop()
	go c.opts.OnSuccess(p.snapshot)
}

// closeFlow is the universal cancellation path. Must run on the event loop.
func (c *Controller) closeFlow() {
	c.release()
	c.fireSuccess()
	if c.state == domain.StateIdle {
		return
	}
	// Invalidate everything still in flight for the current attempt.
	c.attempt++
	c.order = nil
	c.session = nil
	c.request = nil
	c.transactionID = ""
	c.failure = ""
	c.transition(domain.StateIdle, "")
}

// release closes the stream, clears the timer and cancels the attempt context.
// Every call after the first is a no-op.
func (c *Controller) release() {
	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			c.logger.Debug("Closing event stream", zap.Error(err))
		}
		c.sub = nil
		c.opts.Metrics.streamClosed()
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.opts.Metrics.timerCleared()
	}
	if c.cancelAttempt != nil {
		c.cancelAttempt()
		c.cancelAttempt = nil
	}
}

func (c *Controller) transition(to domain.FlowState, status string) {
	from := c.state
	if !domain.CanTransition(from, to) {
		c.logger.Error("Illegal flow transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return
	}

	c.state = to
	c.statusText = status
	c.opts.Metrics.transition(to)
	c.logger.Info("Flow transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("attempt", c.attempt),
	)
	c.publish()
}

func (c *Controller) publish() {
	snap := c.snapshotPtr()
	c.latest.Store(snap)
	for _, w := range c.watchers {
		select {
		case w <- *snap:
			continue
		default:
		}
		// Drop the oldest queued snapshot so the newest always gets through.
		select {
		case <-w:
		default:
		}
		select {
		case w <- *snap:
		default:
		}
	}
}

func (c *Controller) snapshotPtr() *Snapshot {
	snap := &Snapshot{
		FlowID:        c.id,
		State:         c.state,
		StatusText:    c.statusText,
		Busy:          c.state.IsBusy(),
		Attempt:       c.attempt,
		Request:       c.request,
		TransactionID: c.transactionID,
		Error:         c.failure,
		UpdatedAt:     time.Now().UTC(),
	}
	if c.order != nil {
		order := *c.order
		order.Code = ""
		snap.Order = &order
	}
	return snap
}

func (c *Controller) invalidTransition(op string) error {
	return domain.NewPaymentError(domain.ErrInvalidTransition,
		fmt.Sprintf("cannot %s a flow in state %s", op, c.state),
		"INVALID_TRANSITION")
}
