package webhook

import (
	"go.uber.org/fx"

	notificationlog "github.com/fatflowers/mollie-gateway/internal/app/service/notification_log"
)

var Module = fx.Options(
	fx.Provide(NewDonationProcessor),
	fx.Provide(NewSubscriptionProcessor),
	fx.Provide(func(s *notificationlog.Service) NotificationRecorder { return s }),
	fx.Provide(NewReceiver),
)
