package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/store"
)

// Sender sends a single web push notification. Split out so tests can
// swap in a fake.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

func (WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool fans completed-feeding notifications out to every push
// subscriber. There is one feeder, so there is no per-subscriber topic:
// everybody hears about every feeding.
type WorkerPool struct {
	size    int
	jobs    chan model.Feeding
	store   store.Store
	webpush *webpush.Options
	sender  Sender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Feeding, size),
		store:   st,
		webpush: webpushOptions,
		sender:  WebPushSender{},
		log:     log,
	}
}

// SetSender replaces the sender, for tests.
func (wp *WorkerPool) SetSender(s Sender) { wp.sender = s }

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("notification worker started")
	for {
		select {
		case feeding := <-wp.jobs:
			wp.sendForFeeding(ctx, feeding)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("notification worker shutting down")
			return
		}
	}
}

// NotifyFed queues a completed feeding for broadcast. Satisfies the
// orchestrator's Notifier interface.
func (wp *WorkerPool) NotifyFed(feeding model.Feeding) {
	select {
	case wp.jobs <- feeding:
	default:
		wp.log.Warn().Int64("feeding_id", feeding.ID).Msg("notification queue full, dropping")
	}
}

// sendForFeeding broadcasts one feeding to all subscriptions.
func (wp *WorkerPool) sendForFeeding(ctx context.Context, feeding model.Feeding) {
	subs, err := wp.store.ListSubscriptions(ctx)
	if err != nil {
		wp.log.Error().Err(err).Msg("could not list subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	payload := []byte(fmt.Sprintf("%s at %s", feeding.MessageDisplay(), feeding.TimeDisplay()))
	wp.log.Info().Int("subscribers", len(subs)).Int64("feeding_id", feeding.ID).Msg("sending feeding notifications")
	for _, sub := range subs {
		wp.send(ctx, sub, payload)
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("could not send notification")
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are pruned on the spot.
	if resp.StatusCode == http.StatusGone {
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("could not delete expired subscription")
		}
	}
}
