package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// QueueWorker drains the Redis notification queue into a local dispatcher.
type QueueWorker struct {
	queue       *events.RedisQueue
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// NewQueueWorker builds a worker delivering queued events to dispatcher.
func NewQueueWorker(queue *events.RedisQueue, dispatcher events.Dispatcher, logger *zap.Logger) *QueueWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueWorker{
		queue:       queue,
		dispatcher:  dispatcher,
		logger:      logger,
		pollTimeout: 2 * time.Second,
		retryDelay:  time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (w *QueueWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started")
	defer w.logger.Info("notification worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Warn("notification queue read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryDelay):
			}
		}
	}
}

// ProcessNext delivers at most one queued event. It reports whether an
// event was delivered.
func (w *QueueWorker) ProcessNext(ctx context.Context) (bool, error) {
	event, err := w.queue.Pop(ctx, w.pollTimeout)
	if err != nil {
		return false, err
	}
	if event == nil {
		return false, nil
	}
	if err := w.dispatcher.Publish(ctx, *event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return true, nil
}
