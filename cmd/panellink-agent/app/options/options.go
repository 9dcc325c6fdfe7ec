package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/panellink/internal/panelagent"
	"github.com/autopeer-io/panellink/pkg/log"
	genericoptions "github.com/autopeer-io/panellink/pkg/options"
)

// AgentOptions holds every flag group of panellink-agent. The mapstructure
// tags match the flag prefixes so a config file can set the same keys.
type AgentOptions struct {
	Log     *log.Options                   `json:"log" mapstructure:"log"`
	Session *genericoptions.SessionOptions `json:"session" mapstructure:"session"`
	Udp     *genericoptions.UdpOptions     `json:"udp" mapstructure:"udp"`
	Mqtt    *genericoptions.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	Http    *genericoptions.HttpOptions    `json:"http" mapstructure:"http"`
	Grpc    *genericoptions.GrpcOptions    `json:"grpc" mapstructure:"grpc"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		Log:     log.NewOptions(),
		Session: genericoptions.NewSessionOptions(),
		Udp:     genericoptions.NewUdpOptions(),
		Mqtt:    genericoptions.NewMqttOptions(),
		Http:    genericoptions.NewHttpOptions(),
		Grpc:    genericoptions.NewGrpcOptions(),
	}
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}

	o.Session.AddFlags(fss.FlagSet("Session"))
	o.Udp.AddFlags(fss.FlagSet("UDP"))
	o.Mqtt.AddFlags(fss.FlagSet("MQTT"))
	o.Http.AddFlags(fss.FlagSet("HTTP"))
	o.Grpc.AddFlags(fss.FlagSet("gRPC"))
	o.Log.AddFlags(fss.FlagSet("Log"))
	return fss
}

func (o *AgentOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Session.Validate()...)
	switch o.Session.Transport {
	case "udp":
		errs = append(errs, o.Udp.Validate()...)
	case "mqtt":
		errs = append(errs, o.Mqtt.Validate()...)
	}
	errs = append(errs, o.Http.Validate()...)
	errs = append(errs, o.Grpc.Validate()...)

	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config() (*panelagent.Config, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &panelagent.Config{
		SessionOptions: o.Session,
		UdpOptions:     o.Udp,
		MqttOptions:    o.Mqtt,
		HttpOptions:    o.Http,
		GrpcOptions:    o.Grpc,
	}, nil
}
