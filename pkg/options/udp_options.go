package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*UdpOptions)(nil)

// UdpOptions configures the datagram named-value transport.
type UdpOptions struct {
	// ListenAddr is where the simulator export script sends its datagrams.
	ListenAddr string `json:"listen-addr" mapstructure:"listen-addr"`

	// SimAddr is the simulator's receive socket. When empty, replies go to
	// the address the last datagram came from.
	SimAddr string `json:"sim-addr" mapstructure:"sim-addr"`

	// MaxDatagram bounds the receive buffer.
	MaxDatagram int `json:"max-datagram" mapstructure:"max-datagram"`
}

// NewUdpOptions returns the default export ports.
func NewUdpOptions() *UdpOptions {
	return &UdpOptions{
		ListenAddr:  "127.0.0.1:9089",
		SimAddr:     "127.0.0.1:9088",
		MaxDatagram: 8192,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *UdpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errors []error
	if err := ValidateAddress(o.ListenAddr); err != nil {
		errors = append(errors, err)
	}
	if o.SimAddr != "" {
		if err := ValidateAddress(o.SimAddr); err != nil {
			errors = append(errors, err)
		}
	}
	return errors
}

// AddFlags adds flags for UdpOptions to the specified FlagSet.
func (o *UdpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ListenAddr, "udp.listen-addr", o.ListenAddr, "Local address receiving simulator datagrams.")
	fs.StringVar(&o.SimAddr, "udp.sim-addr", o.SimAddr, "Simulator address for outgoing datagrams (empty: reply to sender).")
	fs.IntVar(&o.MaxDatagram, "udp.max-datagram", o.MaxDatagram, "Maximum datagram size in bytes.")
}
