package panelagent

import (
	"context"
	"fmt"
	"os"

	"github.com/autopeer-io/panellink/internal/panelagent/channel"
	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/profile"
	"github.com/autopeer-io/panellink/internal/panelagent/server"
	"github.com/autopeer-io/panellink/internal/panelagent/session"
	"github.com/autopeer-io/panellink/pkg/log"
	"github.com/autopeer-io/panellink/pkg/options"
)

// Config is the validated agent configuration.
type Config struct {
	SessionOptions *options.SessionOptions
	UdpOptions     *options.UdpOptions
	MqttOptions    *options.MqttOptions
	HttpOptions    *options.HttpOptions
	GrpcOptions    *options.GrpcOptions
}

// SessionConfig loads the profile and returns the session configuration.
func (cfg *Config) SessionConfig() (session.Config, error) {
	p, err := profile.Load(cfg.SessionOptions.ProfilePath)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Profile:          p,
		KnownVehicles:    core.NewVehicleSet(cfg.SessionOptions.KnownVehicles...),
		LivenessDeadline: cfg.SessionOptions.LivenessDeadline,
		CoalesceWindow:   cfg.SessionOptions.CoalesceWindow,
		RequestOnStart:   cfg.SessionOptions.RequestOnStart,
	}, nil
}

// NewAgent builds the transport, the session controller and the status
// servers. Nothing is opened until Run.
func (cfg *Config) NewAgent() (*Agent, error) {
	scfg, err := cfg.SessionConfig()
	if err != nil {
		return nil, err
	}

	tr, err := cfg.newTransport()
	if err != nil {
		return nil, err
	}

	ctrl, err := session.New(tr.channel, scfg)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		session:     ctrl,
		transport:   tr,
		profilePath: cfg.SessionOptions.ProfilePath,
		watch:       cfg.SessionOptions.WatchProfile,
	}

	var servers []server.Server
	if cfg.HttpOptions != nil && cfg.HttpOptions.Enabled {
		servers = append(servers, server.NewHTTPServer(cfg.HttpOptions, ctrl))
	}
	if cfg.GrpcOptions != nil && cfg.GrpcOptions.Enabled {
		a.health = server.NewGRPCServer(cfg.GrpcOptions)
		servers = append(servers, a.health)
	}
	a.servers = server.NewManager(servers...)

	return a, nil
}

func (cfg *Config) newTransport() (*transport, error) {
	switch cfg.SessionOptions.Transport {
	case "mqtt":
		ccfg := cfg.MqttOptions.ToClientConfig()
		if ccfg.ClientID == "" {
			hostname, _ := os.Hostname()
			ccfg.ClientID = fmt.Sprintf("panellink-%s", hostname)
		}
		m, err := channel.DialMQTT(ccfg, cfg.MqttOptions.TopicRoot)
		if err != nil {
			log.Error(err, "failed to new mqtt channel")
			return nil, err
		}
		return &transport{channel: m, open: m.Open, close: m.Close}, nil

	case "udp", "":
		u := channel.NewUDP(cfg.UdpOptions.ListenAddr, cfg.UdpOptions.SimAddr, cfg.UdpOptions.MaxDatagram)
		return &transport{
			channel: u,
			open:    func(context.Context) error { return u.Open() },
			run:     u.Run,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.SessionOptions.Transport)
	}
}
