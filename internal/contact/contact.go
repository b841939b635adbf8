// Package contact sends contact-form messages to the remote endpoint and
// keeps every message that could not be delivered in a durable local queue.
package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"makosite/internal/apperr"
	"makosite/internal/kv"
	"makosite/internal/metrics"
	"makosite/internal/validation"
)

// QueueKey is the storage key holding the pending-message array.
const QueueKey = "contact_messages"

// StatusPending is the only status a queued message can have.
const StatusPending = "pending"

// DefaultTimeout bounds a single send.
const DefaultTimeout = 10 * time.Second

// ErrQueuedForRetry reports that a message was not delivered but is stored
// locally.
var ErrQueuedForRetry = errors.New("message queued for retry")

// Payload is what the visitor typed into the contact form.
type Payload struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message" validate:"required"`
}

// QueuedMessage is a payload that failed to send.
type QueuedMessage struct {
	Payload
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Ack is the endpoint's response to a delivered message.
type Ack struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// QueuedError is returned by Submit when the send failed and the message was
// stored. It matches ErrQueuedForRetry and the send failure with errors.Is.
type QueuedError struct {
	Message QueuedMessage
	Cause   error
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("message %s queued for retry: %v", e.Message.ID, e.Cause)
}

func (e *QueuedError) Unwrap() []error {
	return []error{ErrQueuedForRetry, e.Cause}
}

// Notifier is told about every message that lands in the queue.
type Notifier interface {
	NotifyQueued(ctx context.Context, msg QueuedMessage) error
}

// Config holds the remote endpoint settings.
type Config struct {
	// Endpoint receives POSTed messages.
	Endpoint string
	// HealthURL answers 200 when the endpoint is reachable.
	HealthURL string
	// Source is sent with every message.
	Source  string
	Timeout time.Duration
}

// Queue submits messages and owns the local fallback queue.
type Queue struct {
	cfg      Config
	client   *http.Client
	store    kv.Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithNotifier sends a notice for every queued message.
func WithNotifier(n Notifier) Option {
	return func(q *Queue) { q.notifier = n }
}

// WithHTTPClient replaces the HTTP client. Its Timeout is overwritten by
// Config.Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(q *Queue) { q.client = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue creates a Queue that stores undelivered messages in store.
func NewQueue(cfg Config, store kv.Store, opts ...Option) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	q := &Queue{
		cfg:    cfg,
		client: &http.Client{},
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	client := *q.client
	client.Timeout = cfg.Timeout
	q.client = &client
	return q
}

type wireMessage struct {
	Payload
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Submit sends p once. On any failure the message is appended to the queue
// before Submit returns, and the error is a *QueuedError. If the queue write
// itself fails, the error does not match ErrQueuedForRetry.
//
// An invalid payload is rejected with apperr.ErrInvalid before any send.
func (q *Queue) Submit(ctx context.Context, p Payload) (*Ack, error) {
	if err := validation.ValidateStruct(p); err != nil {
		metrics.RecordContactSubmission("invalid")
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	now := q.now().UTC()

	ack, sendErr := q.send(ctx, wireMessage{Payload: p, Timestamp: now, Source: q.cfg.Source})
	if sendErr == nil {
		metrics.RecordContactSubmission("delivered")
		return ack, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	msg := QueuedMessage{
		Payload:   p,
		ID:        id.String(),
		Timestamp: now,
		Status:    StatusPending,
	}

	// The write outlives a cancelled request context.
	if err := q.append(context.WithoutCancel(ctx), msg); err != nil {
		metrics.RecordContactSubmission("lost")
		q.logger.Error("failed to queue contact message",
			zap.String("email", p.Email), zap.NamedError("send_error", sendErr), zap.Error(err))
		return nil, fmt.Errorf("send contact message: %w; queue message: %w", sendErr, err)
	}
	metrics.RecordContactSubmission("queued")
	q.logger.Warn("contact message queued for retry",
		zap.String("id", msg.ID), zap.Error(sendErr))

	if q.notifier != nil {
		if err := q.notifier.NotifyQueued(ctx, msg); err != nil {
			q.logger.Warn("failed to send queued message notice", zap.String("id", msg.ID), zap.Error(err))
		}
	}

	return nil, &QueuedError{Message: msg, Cause: sendErr}
}

// send POSTs one message. Non-2xx answers wrap apperr.ErrRemoteRejected;
// timeouts and connection failures wrap apperr.ErrTransient.
func (q *Queue) send(ctx context.Context, m wireMessage) (*Ack, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		if apperr.IsTimeout(err) {
			return nil, fmt.Errorf("%w: contact endpoint timed out: %v", apperr.ErrTransient, err)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", apperr.ErrTransient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: contact endpoint returned %d", apperr.ErrRemoteRejected, resp.StatusCode)
	}

	ack := &Ack{StatusCode: resp.StatusCode}
	if json.Valid(raw) {
		ack.Body = raw
	}
	return ack, nil
}

// append adds msg in one atomic read-modify-write, so a message queued by
// the server is never overwritten by a redelivery running in another process.
func (q *Queue) append(ctx context.Context, msg QueuedMessage) error {
	err := q.store.Update(ctx, QueueKey, func(raw []byte) ([]byte, error) {
		msgs, err := decodeQueue(raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(append(msgs, msg))
	})
	if err != nil {
		return fmt.Errorf("write contact queue: %w", err)
	}
	return nil
}

// ListQueued returns the pending messages, oldest first.
func (q *Queue) ListQueued(ctx context.Context) ([]QueuedMessage, error) {
	msgs, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(msgs, func(a, b QueuedMessage) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return msgs, nil
}

// CountQueued returns the number of pending messages.
func (q *Queue) CountQueued(ctx context.Context) (int, error) {
	msgs, err := q.load(ctx)
	return len(msgs), err
}

// ClearQueued empties the queue.
func (q *Queue) ClearQueued(ctx context.Context) error {
	if err := q.store.Delete(ctx, QueueKey); err != nil {
		return fmt.Errorf("clear contact queue: %w", err)
	}
	q.logger.Info("contact queue cleared")
	return nil
}

// RedeliverResult reports what Redeliver did. Cleared is true when every
// message read was delivered.
type RedeliverResult struct {
	Attempted int
	Delivered int
	Cleared   bool
}

// Redeliver sends every queued message again, oldest first. Delivered
// messages are removed from the queue; the rest stay in their original order.
// Messages queued while Redeliver runs are kept. Nothing is re-queued.
func (q *Queue) Redeliver(ctx context.Context) (RedeliverResult, error) {
	msgs, err := q.ListQueued(ctx)
	if err != nil {
		return RedeliverResult{}, err
	}
	res := RedeliverResult{Attempted: len(msgs)}
	if len(msgs) == 0 {
		return res, nil
	}

	var errs []error
	delivered := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, err := q.send(ctx, wireMessage{Payload: m.Payload, Timestamp: m.Timestamp, Source: q.cfg.Source}); err != nil {
			errs = append(errs, fmt.Errorf("redeliver %s: %w", m.ID, err))
			continue
		}
		delivered[m.ID] = struct{}{}
		res.Delivered++
	}

	if len(delivered) > 0 {
		if err := q.remove(context.WithoutCancel(ctx), delivered); err != nil {
			// The delivered messages stay queued and will be sent again.
			return res, errors.Join(append(errs, fmt.Errorf("remove redelivered messages: %w", err))...)
		}
	}

	if len(errs) > 0 {
		q.logger.Warn("redelivery incomplete",
			zap.Int("delivered", res.Delivered), zap.Int("failed", len(errs)))
		return res, errors.Join(errs...)
	}
	res.Cleared = true
	q.logger.Info("contact queue redelivered", zap.Int("delivered", res.Delivered))
	return res, nil
}

// remove drops the messages with the given ids in one atomic update.
func (q *Queue) remove(ctx context.Context, ids map[string]struct{}) error {
	return q.store.Update(ctx, QueueKey, func(raw []byte) ([]byte, error) {
		msgs, err := decodeQueue(raw)
		if err != nil {
			return nil, err
		}
		remaining := slices.DeleteFunc(msgs, func(m QueuedMessage) bool {
			_, ok := ids[m.ID]
			return ok
		})
		if len(remaining) == 0 {
			return nil, nil
		}
		return json.Marshal(remaining)
	})
}

// HealthCheck reports whether the endpoint answers its health URL with 200.
// It never returns an error and never queues anything.
func (q *Queue) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.cfg.HealthURL, nil)
	if err != nil {
		q.logger.Debug("health check request failed", zap.Error(err))
		return false
	}
	resp, err := q.client.Do(req)
	if err != nil {
		q.logger.Debug("contact endpoint unreachable", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (q *Queue) load(ctx context.Context) ([]QueuedMessage, error) {
	raw, err := q.store.Get(ctx, QueueKey)
	if err != nil {
		return nil, fmt.Errorf("read contact queue: %w", err)
	}
	return decodeQueue(raw)
}

func decodeQueue(raw []byte) ([]QueuedMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var msgs []QueuedMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode contact queue: %w", err)
	}
	return msgs, nil
}
