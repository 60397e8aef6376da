// Package notify delivers fire-and-forget change events after successful
// mutations. Publish never blocks the mutation path: events queue into a
// bounded buffer and are dropped with a warning when delivery cannot keep up.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kind identifies the change an event describes.
type Kind string

const (
	KindDatasetInserted Kind = "dataset.inserted"
	KindDatasetDeleted  Kind = "dataset.deleted"
)

// Event is one change notification.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	DatasetIDs []int64   `json:"dataset_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(kind Kind, datasetIDs ...int64) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		DatasetIDs: datasetIDs,
		Timestamp:  time.Now().UTC(),
	}
}

// Notifier is a best-effort event sink. Publish must return promptly and
// must never surface delivery failures to the caller.
type Notifier interface {
	Publish(e Event)
}

// LogNotifier writes events to the global logger. It is the default sink
// when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) Publish(e Event) {
	zap.L().Info("dataset change event",
		zap.String("event_id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.Int64s("dataset_ids", e.DatasetIDs),
	)
}

// Webhook posts events to a configured URL from a single background worker.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	queue   chan Event
	done    chan struct{}
}

// WebhookOptions tunes the webhook sink. Zero values get defaults.
type WebhookOptions struct {
	QueueSize  int
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
}

// NewWebhook creates the sink and starts its delivery worker.
func NewWebhook(url string, opts WebhookOptions) *Webhook {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	w := &Webhook{
		url:     url,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		queue:   make(chan Event, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Publish enqueues the event, dropping it if the buffer is full.
func (w *Webhook) Publish(e Event) {
	select {
	case w.queue <- e:
	default:
		zap.L().Warn("notify: queue full, dropping event",
			zap.String("event_id", e.ID),
			zap.String("kind", string(e.Kind)),
		)
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
func (w *Webhook) Close() {
	close(w.queue)
	<-w.done
	w.client.CloseIdleConnections()
}

func (w *Webhook) run() {
	defer close(w.done)
	for e := range w.queue {
		if err := w.limiter.Wait(context.Background()); err != nil {
			return
		}
		w.deliver(e)
	}
}

func (w *Webhook) deliver(e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		zap.L().Warn("notify: marshal event", zap.Error(err))
		return
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("notify: post event",
			zap.String("event_id", e.ID),
			zap.Error(err),
		)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		zap.L().Warn("notify: webhook returned non-success",
			zap.String("event_id", e.ID),
			zap.Int("status", resp.StatusCode),
		)
	}
}
