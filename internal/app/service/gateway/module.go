package gateway

import (
	"go.uber.org/fx"

	"github.com/fatflowers/mollie-gateway/internal/app/service/payment"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/internal/app/service/webhook"
	"github.com/fatflowers/mollie-gateway/internal/platform/mollie"
	"github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/metrics"
)

func NewClientFactory(cfg *config.Config) *mollie.Factory {
	return mollie.NewFactory(mollie.FactoryOptions{
		LiveAPIKey: cfg.Mollie.LiveAPIKey,
		TestAPIKey: cfg.Mollie.TestAPIKey,
		Endpoint:   cfg.Mollie.Endpoint,
		Timeout:    cfg.Mollie.Timeout(),
		UserAgent:  cfg.Mollie.UserAgent,
		Observer:   metrics.ObserveMollieRequest,
	})
}

// Register adds the gateway, its payment processor and its webhook receiver to the registry.
func Register(reg *registry.Registry, g *Gateway, processor *payment.Processor, receiver *webhook.Receiver) error {
	if err := reg.RegisterGateway(g); err != nil {
		return err
	}
	reg.RegisterPaymentProcessor(g.ID(), processor)
	reg.RegisterWebhookReceiver(g.ID(), receiver)
	return nil
}

var Module = fx.Options(
	fx.Provide(NewClientFactory),
	fx.Provide(New),
	fx.Invoke(Register),
)
