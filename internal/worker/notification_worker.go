package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/service"
)

// StartNotificationWorker registers notification handlers. When queue is set
// it also drains the queue into dispatcher until ctx is done.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, queue *events.RedisQueue, dispatcher events.Dispatcher, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if queue == nil || dispatcher == nil {
		return
	}
	logger.Info("starting event queue consumer")
	go queue.Consume(ctx, dispatcher, logger)
}
