package mollie

import (
	"sync"
	"time"
)

type FactoryOptions struct {
	LiveAPIKey string
	TestAPIKey string
	Endpoint   string
	Timeout    time.Duration
	UserAgent  string
	Observer   Observer
}

// Factory hands out clients for live or test mode.
type Factory struct {
	opts FactoryOptions

	mu      sync.Mutex
	clients map[bool]*Client
}

func NewFactory(opts FactoryOptions) *Factory {
	return &Factory{opts: opts, clients: make(map[bool]*Client, 2)}
}

// New returns a fresh client whose key validity starts unknown.
func (f *Factory) New(testMode bool) *Client {
	key := f.opts.LiveAPIKey
	if testMode {
		key = f.opts.TestAPIKey
	}
	return NewClient(Options{
		APIKey:    key,
		TestMode:  testMode,
		Endpoint:  f.opts.Endpoint,
		Timeout:   f.opts.Timeout,
		UserAgent: f.opts.UserAgent,
		Observer:  f.opts.Observer,
	})
}

// Client returns the shared client for the mode, creating it on first use.
func (f *Factory) Client(testMode bool) *Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[testMode]; ok {
		return c
	}
	c := f.New(testMode)
	f.clients[testMode] = c
	return c
}
