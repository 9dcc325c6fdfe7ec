package core

// Inbound status signals reported by the simulator export.
const (
	SignalActiveVehicle = "ACTIVE_VEHICLE"
	SignalActiveDriver  = "ACTIVE_DRIVER"
	SignalActiveModule  = "ACTIVE_MODULE"
	SignalAlive         = "ALIVE"
)

// Outbound requests understood by the simulator export.
const (
	// CommandSwitchDriver asks the legacy export script to load the driver
	// named by the value.
	CommandSwitchDriver = "SwitchDriver"

	// CommandActivateModule asks the simulator to run the integrated export
	// module. The value names the vehicle the panel expects.
	CommandActivateModule = "ActivateModule"
)

// Strategy selects how the export driver is negotiated.
type Strategy int

const (
	// StrategyLegacy drives a single export script that loads one driver per vehicle.
	StrategyLegacy Strategy = iota
	// StrategyModule relies on the integrated module, which selects per-vehicle
	// behaviour on the simulator side.
	StrategyModule
)

// StrategyFor maps the persisted UsesExportModule flag to a Strategy.
func StrategyFor(usesExportModule bool) Strategy {
	if usesExportModule {
		return StrategyModule
	}
	return StrategyLegacy
}

func (s Strategy) String() string {
	switch s {
	case StrategyLegacy:
		return "legacy"
	case StrategyModule:
		return "module"
	default:
		return "unknown"
	}
}
