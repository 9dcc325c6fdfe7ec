package panelagent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/profile"
	"github.com/autopeer-io/panellink/internal/panelagent/server"
	"github.com/autopeer-io/panellink/internal/panelagent/session"
	"github.com/autopeer-io/panellink/pkg/log"
)

const reloadDebounce = 250 * time.Millisecond

// transport is a named-value channel plus its lifecycle hooks. run and close
// may be nil.
type transport struct {
	channel core.Channel
	open    func(ctx context.Context) error
	run     func(ctx context.Context) error
	close   func(ctx context.Context)
}

// Agent runs one panel session against the simulator along with its status
// servers.
type Agent struct {
	session   *session.Controller
	transport *transport
	servers   *server.Manager
	health    *server.GRPCServer

	profilePath string
	watch       bool
}

// Session returns the session controller.
func (a *Agent) Session() *session.Controller {
	return a.session
}

// Run opens the transport, starts the session and serves until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	p := a.session.Profile()
	log.Info("Starting panellink agent", "profile", a.profilePath, "vehicle", p.Identity().String(),
		"strategy", p.Strategy())

	cancels := a.subscribe()
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	if err := a.transport.open(ctx); err != nil {
		return err
	}
	if a.transport.close != nil {
		defer a.transport.close(context.Background())
	}

	g, ctx := errgroup.WithContext(ctx)

	if err := a.session.Start(ctx); err != nil {
		return err
	}
	if a.health != nil {
		a.health.SetSessionRunning(true)
	}

	if a.transport.run != nil {
		g.Go(func() error {
			return a.transport.run(ctx)
		})
	}

	g.Go(func() error {
		return a.servers.Start(ctx)
	})

	if a.watch {
		w := profile.NewWatcher(a.profilePath, reloadDebounce, func() { a.reload(ctx) })
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.session.Stop()
		log.Info("Shutting down panellink agent.")
		return nil
	})

	return g.Wait()
}

func (a *Agent) subscribe() []func() {
	events := a.session.Events()
	cancels := []func(){
		events.OnDriverStatus(func(s core.DriverStatus) {
			log.Info("Simulator export driver", "driver", s.ExportDriver, "state", a.session.Snapshot().State)
		}),
		events.OnProfileHint(func(h core.ProfileHint) {
			if p := a.session.Profile(); h.Tag != p.Vehicle {
				log.Info("Simulator reports a different vehicle than the loaded profile", "simulator", h.Tag,
					"profile", p.Vehicle)
			}
		}),
	}
	if a.health != nil {
		cancels = append(cancels, events.OnLinkStatus(a.health.SetLinkStatus))
	}
	return cancels
}

func (a *Agent) reload(ctx context.Context) {
	p, err := profile.Load(a.profilePath)
	if err != nil {
		log.Error(err, "Failed to reload profile, keeping the current session", "profile", a.profilePath)
		return
	}
	if err := a.session.Reload(ctx, p); err != nil {
		log.Error(err, "Reloaded profile is invalid, keeping the current session", "profile", a.profilePath)
		return
	}
	log.Info("Profile reloaded", "profile", a.profilePath, "vehicle", p.Identity().String())
}
