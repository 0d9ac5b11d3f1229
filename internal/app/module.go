package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/mollie-gateway/internal/app/api/server"
	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/gateway"
	notificationlog "github.com/fatflowers/mollie-gateway/internal/app/service/notification_log"
	"github.com/fatflowers/mollie-gateway/internal/app/service/payment"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/app/service/webhook"
	"github.com/fatflowers/mollie-gateway/internal/platform/db"
	"github.com/fatflowers/mollie-gateway/internal/platform/lock"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// CoreModule is everything but the HTTP server, shared with the CLI.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	lock.Module,
	donation.Module,
	registry.Module,
	notificationlog.Module,
	payment.Module,
	webhook.Module,
	gateway.Module,
)

var Module = fx.Options(
	CoreModule,
	server.Module,
)
