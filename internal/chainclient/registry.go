// Package chainclient builds and owns the per-chain RPC client bundle
// (C1): the required request/response client, the optional streaming
// client, the confirmation depth, and the monitor list each chain was
// configured with.
package chainclient

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/chainerr"
	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/metrics"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

// Handle bundles everything a chain's ingestors and confirmation
// tracker need.
type Handle struct {
	Name                  string
	RequestClient         rpcclient.RequestClient
	StreamClient          rpcclient.StreamClient // nil when not configured or dial failed
	RequiredConfirmations int
	Monitors              []config.MonitorConfig
}

// Registry owns one Handle per configured chain, keyed case-
// insensitively on the configured chain name.
type Registry struct {
	handles map[string]*Handle
	logger  *zap.Logger
}

// New dials a request client (required) and, if configured, a stream
// client (optional — a dial failure here is logged and non-fatal,
// spec.md §4.1) for every chain in cfg. A chain whose required client
// fails to dial is dropped entirely and logged; New returns an error
// only when no chain at all could be initialized.
func New(ctx context.Context, cfg *config.Config, m metrics.Engine, logger *zap.Logger) (*Registry, error) {
	r := &Registry{handles: make(map[string]*Handle), logger: logger}

	for _, c := range cfg.Chains {
		req, err := rpcclient.DialRequestClient(ctx, c.HTTPUrl)
		if err != nil {
			cerr := chainerr.Wrap(c.Name, "dial request client", err)
			logger.Error("skipping chain: failed to dial request client", zap.Error(cerr))
			continue
		}
		tracked := rpcclient.NewTrackedRequestClient(req, c.Name, m)

		var stream rpcclient.StreamClient
		if c.WSUrl != "" {
			s, err := rpcclient.DialStreamClient(ctx, c.WSUrl)
			if err != nil {
				cerr := chainerr.Wrap(c.Name, "dial stream client", err)
				logger.Error("streaming client unavailable, continuing with request client only", zap.Error(cerr))
			} else {
				stream = s
			}
		}

		r.handles[key(c.Name)] = &Handle{
			Name:                  c.Name,
			RequestClient:         tracked,
			StreamClient:          stream,
			RequiredConfirmations: c.RequiredConfirmations,
			Monitors:              c.Monitor,
		}
	}

	if len(r.handles) == 0 {
		return nil, errNoChains
	}

	return r, nil
}

var errNoChains = registryError("no chain could be initialized")

type registryError string

func (e registryError) Error() string { return string(e) }

func key(chain string) string { return strings.ToLower(chain) }

// SupportedChains returns the names of every chain with a working
// request/response client.
func (r *Registry) SupportedChains() []string {
	names := make([]string, 0, len(r.handles))
	for _, h := range r.handles {
		names = append(names, h.Name)
	}
	return names
}

// Handle returns the bundle for chain, or nil if unknown.
func (r *Registry) Handle(chain string) *Handle {
	return r.handles[key(chain)]
}

// RequestClient returns chain's required client, or nil if unknown.
func (r *Registry) RequestClient(chain string) rpcclient.RequestClient {
	h := r.handles[key(chain)]
	if h == nil {
		return nil
	}
	return h.RequestClient
}

// StreamClient returns chain's streaming client, or nil if unknown or
// not configured.
func (r *Registry) StreamClient(chain string) rpcclient.StreamClient {
	h := r.handles[key(chain)]
	if h == nil {
		return nil
	}
	return h.StreamClient
}

// RequiredConfirmations returns chain's confirmation depth, defaulting
// to config.DefaultRequiredConfirmations for an unknown chain.
func (r *Registry) RequiredConfirmations(chain string) int {
	h := r.handles[key(chain)]
	if h == nil {
		return config.DefaultRequiredConfirmations
	}
	return h.RequiredConfirmations
}

// Monitors returns chain's monitor list, empty if unknown.
func (r *Registry) Monitors(chain string) []config.MonitorConfig {
	h := r.handles[key(chain)]
	if h == nil {
		return nil
	}
	return h.Monitors
}

// Close disposes every streaming session first, then releases every
// request client. Best-effort: errors are logged, never returned,
// matching spec.md §4.1 "closing is best-effort and never throws out
// of the shutdown path."
func (r *Registry) Close() {
	for _, h := range r.handles {
		if h.StreamClient != nil {
			if err := h.StreamClient.Close(); err != nil {
				r.logger.Warn("error closing stream client", zap.String("chain", h.Name), zap.Error(err))
			}
		}
	}
	for _, h := range r.handles {
		if err := h.RequestClient.Close(); err != nil {
			r.logger.Warn("error closing request client", zap.String("chain", h.Name), zap.Error(err))
		}
	}
}
