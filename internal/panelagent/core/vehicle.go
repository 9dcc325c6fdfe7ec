package core

import (
	"slices"
	"strings"
)

// VehicleIdentity names the vehicle a panel controls. Native is fixed when the
// session is built; Impersonated, when set, replaces it for driver selection.
type VehicleIdentity struct {
	Native       string
	Impersonated string
}

// EffectiveName is the identity used when requesting and matching drivers.
func (v VehicleIdentity) EffectiveName() string {
	if v.Impersonated != "" {
		return v.Impersonated
	}
	return v.Native
}

func (v VehicleIdentity) String() string {
	if v.Impersonated != "" {
		return v.Native + " as " + v.Impersonated
	}
	return v.Native
}

// VehicleSet is an immutable set of vehicle names that have an export driver.
type VehicleSet struct {
	names map[string]struct{}
}

// NewVehicleSet builds a set from names. Blank entries are skipped.
func NewVehicleSet(names ...string) VehicleSet {
	set := VehicleSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set.names[n] = struct{}{}
		}
	}
	return set
}

// Contains reports whether name is a known vehicle.
func (s VehicleSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of vehicles in the set.
func (s VehicleSet) Len() int {
	return len(s.names)
}

// Names returns the members sorted.
func (s VehicleSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
