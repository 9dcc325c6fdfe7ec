package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/panellink/pkg/log"
)

// Server is a protocol server; Start blocks until ctx ends or serving fails.
type Server interface {
	Start(ctx context.Context) error
}

// Manager runs a set of servers together.
type Manager struct {
	servers []Server
}

// NewManager skips nil servers.
func NewManager(servers ...Server) *Manager {
	m := &Manager{}
	for _, s := range servers {
		if s != nil {
			m.servers = append(m.servers, s)
		}
	}
	return m
}

// Start launches all servers in parallel. The first failure cancels the rest.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("Status servers starting", "count", len(m.servers))
	return g.Wait()
}
