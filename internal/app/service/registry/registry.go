package registry

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/fx"
)

const (
	FeatureRefunds   = "refunds"
	FeatureRecurring = "recurring"
)

// SettingField describes one admin setting of a gateway.
type SettingField struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Class    string `json:"class,omitempty"`
	// Value is filled for display only; secrets are masked.
	Value string `json:"value,omitempty"`
}

type Gateway interface {
	ID() string
	Name() string
	Supports(feature string) bool
	SettingsFields() []SettingField
}

// PaymentResult is what the checkout flow gets back from a processor.
type PaymentResult struct {
	Success  bool     `json:"success"`
	Redirect string   `json:"redirect,omitempty"`
	Notices  []string `json:"notices,omitempty"`
}

type PaymentProcessor interface {
	ProcessDonation(ctx context.Context, donationID string) (*PaymentResult, error)
}

type WebhookRequest struct {
	Method string
	Header http.Header
	Body   []byte
}

// WebhookResult is the HTTP status and plain text body returned to the caller.
type WebhookResult struct {
	Status  int
	Message string
}

type WebhookReceiver interface {
	Receive(ctx context.Context, req *WebhookRequest) *WebhookResult
}

// Registry maps gateway IDs to their capabilities. Entries are added during
// startup and read concurrently by handlers.
type Registry struct {
	mu         sync.RWMutex
	gateways   map[string]Gateway
	processors map[string]PaymentProcessor
	receivers  map[string]WebhookReceiver
}

func New() *Registry {
	return &Registry{
		gateways:   map[string]Gateway{},
		processors: map[string]PaymentProcessor{},
		receivers:  map[string]WebhookReceiver{},
	}
}

func (r *Registry) RegisterGateway(g Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gateways[g.ID()]; ok {
		return fmt.Errorf("gateway %q already registered", g.ID())
	}
	r.gateways[g.ID()] = g
	return nil
}

func (r *Registry) RegisterPaymentProcessor(gatewayID string, p PaymentProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[gatewayID] = p
}

// RegisterWebhookReceiver binds a receiver to the source segment of the webhook URL.
func (r *Registry) RegisterWebhookReceiver(source string, w WebhookReceiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receivers[source] = w
}

func (r *Registry) Gateway(id string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[id]
	return g, ok
}

func (r *Registry) PaymentProcessor(gatewayID string) (PaymentProcessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[gatewayID]
	return p, ok
}

func (r *Registry) WebhookReceiver(source string) (WebhookReceiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.receivers[source]
	return w, ok
}

// Gateways returns the registered gateways ordered by ID.
func (r *Registry) Gateways() []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

var Module = fx.Options(
	fx.Provide(New),
)
