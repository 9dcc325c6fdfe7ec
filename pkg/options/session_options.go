package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SessionOptions)(nil)

// SessionOptions controls the panel session: which profile is loaded, how the
// driver negotiation behaves and when the simulator link is declared stale.
type SessionOptions struct {
	// Transport selects the named-value channel: "udp" or "mqtt".
	Transport string `json:"transport" mapstructure:"transport"`

	// ProfilePath is the panel profile to load.
	ProfilePath string `json:"profile" mapstructure:"profile"`

	// WatchProfile reloads the session when the profile file changes.
	WatchProfile bool `json:"watch-profile" mapstructure:"watch-profile"`

	// KnownVehicles lists the vehicle identities with an export driver.
	KnownVehicles []string `json:"known-vehicles" mapstructure:"known-vehicles"`

	// LivenessDeadline is how long the link may stay silent before it is stale.
	LivenessDeadline time.Duration `json:"liveness-deadline" mapstructure:"liveness-deadline"`

	// CoalesceWindow suppresses identical driver requests sent within the window.
	// Zero disables coalescing.
	CoalesceWindow time.Duration `json:"coalesce-window" mapstructure:"coalesce-window"`

	// RequestOnStart issues a driver request right after the session starts.
	RequestOnStart bool `json:"request-on-start" mapstructure:"request-on-start"`
}

// NewSessionOptions returns the defaults.
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		Transport:    "udp",
		ProfilePath:  "profile.yaml",
		WatchProfile: true,
		KnownVehicles: []string{
			"A-10C", "AV8B", "F-14B", "F-16C", "FA-18C", "Ka-50", "Mi-8MT", "UH-1H",
		},
		LivenessDeadline: 10 * time.Second,
		CoalesceWindow:   2 * time.Second,
		RequestOnStart:   true,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *SessionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Transport != "udp" && o.Transport != "mqtt" {
		errs = append(errs, fmt.Errorf("unsupported transport %q, must be udp or mqtt", o.Transport))
	}
	if o.ProfilePath == "" {
		errs = append(errs, fmt.Errorf("--session.profile is required"))
	}
	if len(o.KnownVehicles) == 0 {
		errs = append(errs, fmt.Errorf("--session.known-vehicles must not be empty"))
	}
	if o.LivenessDeadline <= 0 {
		errs = append(errs, fmt.Errorf("--session.liveness-deadline must be positive"))
	}
	if o.CoalesceWindow < 0 {
		errs = append(errs, fmt.Errorf("--session.coalesce-window must not be negative"))
	}
	return errs
}

// AddFlags adds flags for SessionOptions to the specified FlagSet.
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Transport, "session.transport", o.Transport, "Named-value transport to the simulator ('udp' or 'mqtt').")
	fs.StringVar(&o.ProfilePath, "session.profile", o.ProfilePath, "Path to the panel profile (YAML).")
	fs.BoolVar(&o.WatchProfile, "session.watch-profile", o.WatchProfile, "Restart the session when the profile file changes.")
	fs.StringSliceVar(&o.KnownVehicles, "session.known-vehicles", o.KnownVehicles, "Vehicle identities that have an export driver.")
	fs.DurationVar(&o.LivenessDeadline, "session.liveness-deadline", o.LivenessDeadline, "Silence after which the simulator link is reported stale.")
	fs.DurationVar(&o.CoalesceWindow, "session.coalesce-window", o.CoalesceWindow, "Window in which identical driver requests are sent only once (0 disables).")
	fs.BoolVar(&o.RequestOnStart, "session.request-on-start", o.RequestOnStart, "Request the matching export driver as soon as the session starts.")
}
