package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

// GrpcOptions configures the gRPC health endpoint.
type GrpcOptions struct {
	// Enabled turns the gRPC health server on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	Network string `json:"network" mapstructure:"network"`
	Addr    string `json:"addr" mapstructure:"addr"`

	// RequestTimeout bounds unary calls that arrive without a deadline.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
}

// NewGrpcOptions returns defaults that listen on localhost only.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Enabled: true,
		Network: "tcp",
		Addr:    "127.0.0.1:8091",

		RequestTimeout: 10 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GrpcOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errors []error
	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	if o.RequestTimeout < 0 {
		errors = append(errors, fmt.Errorf("--grpc.request-timeout must not be negative"))
	}
	return errors
}

// AddFlags adds the gRPC health server flags to fs.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "grpc.enabled", o.Enabled, "Serve the gRPC health service.")
	fs.StringVar(&o.Network, "grpc.network", o.Network, "Specify the network for the gRPC server.")
	fs.StringVar(&o.Addr, "grpc.addr", o.Addr, "Specify the gRPC server bind address and port.")
	fs.DurationVar(&o.RequestTimeout, "grpc.request-timeout", o.RequestTimeout, "Deadline applied to unary calls that carry none.")
}
