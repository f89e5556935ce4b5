package worker

import (
	"context"

	"github.com/spec-kit/reputation-service/internal/service"
)

// StartNotificationWorker registers notification handlers and delivers
// queued events until ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) error {
	if notificationService == nil {
		return nil
	}
	notificationService.RegisterHandlers()
	return notificationService.Run(ctx)
}
