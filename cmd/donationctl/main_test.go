package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/mollie-gateway/internal/app/service/donation/donationtest"
	"github.com/fatflowers/mollie-gateway/internal/app/service/gateway"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/pkg/config"
)

type stubActions struct {
	refunded, cancelled []string
	err                 error
}

func (s *stubActions) RefundDonationFromDashboard(_ context.Context, id string) error {
	s.refunded = append(s.refunded, id)
	return s.err
}

func (s *stubActions) CancelSubscription(_ context.Context, id string) error {
	s.cancelled = append(s.cancelled, id)
	return s.err
}

func run(t *testing.T, d *deps, args ...string) (string, error) {
	t.Helper()
	closed := false
	open := func(context.Context) (*deps, func(), error) {
		return d, func() { closed = true }, nil
	}
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.True(t, closed, "dependencies must be released")
	return out.String(), err
}

func TestRefundAndCancel(t *testing.T) {
	a := &stubActions{}
	d := &deps{Actions: a, Registry: registry.New()}

	out, err := run(t, d, "refund", "42")
	require.NoError(t, err)
	require.Equal(t, "donation 42 refunded\n", out)

	out, err = run(t, d, "cancel-subscription", "7")
	require.NoError(t, err)
	require.Contains(t, out, "recurring donation 7 cancelled")

	require.Equal(t, []string{"42"}, a.refunded)
	require.Equal(t, []string{"7"}, a.cancelled)
}

func TestRefundError(t *testing.T) {
	a := &stubActions{err: gateway.ErrAlreadyRefunded}
	_, err := run(t, &deps{Actions: a, Registry: registry.New()}, "refund", "42")
	require.ErrorIs(t, err, gateway.ErrAlreadyRefunded)
}

func TestSettings(t *testing.T) {
	cfg := &config.Config{Mollie: config.MollieConfig{LiveAPIKey: "live_abcdefgh1234"}}
	g := gateway.New(cfg, gateway.NewClientFactory(cfg), donationtest.New(), zap.NewNop().Sugar())
	reg := registry.New()
	require.NoError(t, reg.RegisterGateway(g))

	out, err := run(t, &deps{Actions: &stubActions{}, Registry: reg}, "settings")
	require.NoError(t, err)
	require.Contains(t, out, `"title": "Mollie API Keys"`)
	require.Contains(t, out, `"value": "live_********1234"`)
	require.NotContains(t, out, "abcdefgh")

	_, err = run(t, &deps{Actions: &stubActions{}, Registry: reg}, "settings", "paypal")
	require.ErrorContains(t, err, "unknown gateway")
}
