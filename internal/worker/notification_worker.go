package worker

import (
	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/service"
)

// StartNotificationWorker subscribes the notifier to ticket events. Delivery then runs
// on the dispatcher's goroutines.
func StartNotificationWorker(notifier *service.NotificationService, logger *zap.Logger) {
	if notifier == nil {
		return
	}
	notifier.RegisterHandlers()
	if logger != nil {
		logger.Info("notification worker started")
	}
}
