package ecr

// Constants bundles the tunable parameters of the energy model and the
// route discovery/update cadence. An Engine and each Node receive a
// Constants value at construction (NewEngine, WithConstants), so there is
// no global mutable configuration state anywhere in the core.
type Constants struct {
	// BatteryDrainConstant is drained from every alive node's battery
	// every tick, regardless of traffic.
	BatteryDrainConstant float64

	// BatteryDrainPerPacket is drained per packet forwarded in the
	// previous tick.
	BatteryDrainPerPacket float64

	// EMAAlpha weights the historical p_hat estimate against the most
	// recent sample.
	EMAAlpha float64

	// Gamma is the per-hop geometric discount applied when propagating
	// a route's lat_r backward across a forwarder.
	Gamma float64

	// RDTimeout bounds how long an outstanding route discovery is
	// carried before it is declared failed, and how long a forwarded
	// RD is remembered to suppress duplicate floods.
	RDTimeout int

	// RDResend is the payload-number interval at which a source
	// opportunistically resends RD to alternate next hops.
	RDResend int

	// RUMinInterval is the minimum tick gap between RU emissions for
	// the same route.
	RUMinInterval int
}

// DefaultConstants returns the parameter values named in the protocol's
// external interface table.
func DefaultConstants() Constants {
	return Constants{
		BatteryDrainConstant:  0.001,
		BatteryDrainPerPacket: 0.0003,
		EMAAlpha:              0.8,
		Gamma:                 0.98,
		RDTimeout:             100,
		RDResend:              10,
		RUMinInterval:         5,
	}
}
