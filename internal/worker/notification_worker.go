package worker

import (
	"context"
	"sync"

	"github.com/luiscanel/service-desk/internal/service"
)

// Workers groups the background processes that run beside the API.
type Workers struct {
	Notifications  *service.NotificationService
	Sweeper        *SlaSweeper
	PolicyListener *PolicyListener
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Start registers notification handlers and launches the sweeper and policy
// listener. The returned function blocks until both have stopped after ctx is
// cancelled.
func Start(ctx context.Context, w Workers) (wait func()) {
	StartNotificationWorker(w.Notifications)

	var wg sync.WaitGroup
	if w.Sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Sweeper.Run(ctx)
		}()
	}
	if w.PolicyListener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.PolicyListener.Run(ctx)
		}()
	}
	return wg.Wait
}
